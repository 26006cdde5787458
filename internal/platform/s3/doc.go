// Package s3 reads raw disk images straight out of an S3 bucket.
//
// Objects are never staged locally: the object size is read with HeadObject
// (to size the target volume) and the body is streamed with GetObject into
// the compressed upload pipeline.
package s3
