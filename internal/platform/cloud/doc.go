// Package cloud defines the provider-neutral view of the resources an image
// workflow provisions: their identifiers, the status values the workflows
// wait on, and the capability interfaces each provider implements.
//
// Providers translate their native states into the enums declared here, so
// the workflows and their tests never import a provider SDK.
package cloud
