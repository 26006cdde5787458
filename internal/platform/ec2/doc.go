// Package ec2 implements the cloud capability interfaces on Amazon EC2
// using aws-sdk-go-v2.
//
// The SDK client is reached through the narrow [API] interface so tests can
// substitute an in-memory fake. Every resource created here is tagged with
// the labels supplied by the caller, and native states are translated into
// the enums of package cloud.
package ec2
