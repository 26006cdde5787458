package ec2

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	"github.com/imamik/amiforge/internal/config"
)

// fakeAPI is an in-memory API. Unset hooks return empty outputs.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	createSecurityGroup func(*ec2.CreateSecurityGroupInput) (*ec2.CreateSecurityGroupOutput, error)
	authorizeIngress    func(*ec2.AuthorizeSecurityGroupIngressInput) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	deleteSecurityGroup func(*ec2.DeleteSecurityGroupInput) (*ec2.DeleteSecurityGroupOutput, error)
	createKeyPair       func(*ec2.CreateKeyPairInput) (*ec2.CreateKeyPairOutput, error)
	deleteKeyPair       func(*ec2.DeleteKeyPairInput) (*ec2.DeleteKeyPairOutput, error)
	runInstances        func(*ec2.RunInstancesInput) (*ec2.RunInstancesOutput, error)
	describeInstances   func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
	terminateInstances  func(*ec2.TerminateInstancesInput) (*ec2.TerminateInstancesOutput, error)
	createVolume        func(*ec2.CreateVolumeInput) (*ec2.CreateVolumeOutput, error)
	describeVolumes     func(*ec2.DescribeVolumesInput) (*ec2.DescribeVolumesOutput, error)
	deleteVolume        func(*ec2.DeleteVolumeInput) (*ec2.DeleteVolumeOutput, error)
	describeSnapshots   func(*ec2.DescribeSnapshotsInput) (*ec2.DescribeSnapshotsOutput, error)
	registerImage       func(*ec2.RegisterImageInput) (*ec2.RegisterImageOutput, error)
	describeImages      func(*ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error)
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.record("CreateSecurityGroup")
	if f.createSecurityGroup != nil {
		return f.createSecurityGroup(in)
	}
	return &ec2.CreateSecurityGroupOutput{}, nil
}

func (f *fakeAPI) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.record("AuthorizeSecurityGroupIngress")
	if f.authorizeIngress != nil {
		return f.authorizeIngress(in)
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeAPI) DeleteSecurityGroup(_ context.Context, in *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.record("DeleteSecurityGroup")
	if f.deleteSecurityGroup != nil {
		return f.deleteSecurityGroup(in)
	}
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *fakeAPI) CreateKeyPair(_ context.Context, in *ec2.CreateKeyPairInput, _ ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error) {
	f.record("CreateKeyPair")
	if f.createKeyPair != nil {
		return f.createKeyPair(in)
	}
	return &ec2.CreateKeyPairOutput{}, nil
}

func (f *fakeAPI) DeleteKeyPair(_ context.Context, in *ec2.DeleteKeyPairInput, _ ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	f.record("DeleteKeyPair")
	if f.deleteKeyPair != nil {
		return f.deleteKeyPair(in)
	}
	return &ec2.DeleteKeyPairOutput{}, nil
}

func (f *fakeAPI) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.record("RunInstances")
	if f.runInstances != nil {
		return f.runInstances(in)
	}
	return &ec2.RunInstancesOutput{}, nil
}

func (f *fakeAPI) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.record("DescribeInstances")
	if f.describeInstances != nil {
		return f.describeInstances(in)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (f *fakeAPI) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.record("TerminateInstances")
	if f.terminateInstances != nil {
		return f.terminateInstances(in)
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeAPI) CreateVolume(_ context.Context, in *ec2.CreateVolumeInput, _ ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error) {
	f.record("CreateVolume")
	if f.createVolume != nil {
		return f.createVolume(in)
	}
	return &ec2.CreateVolumeOutput{}, nil
}

func (f *fakeAPI) DescribeVolumes(_ context.Context, in *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	f.record("DescribeVolumes")
	if f.describeVolumes != nil {
		return f.describeVolumes(in)
	}
	return &ec2.DescribeVolumesOutput{}, nil
}

func (f *fakeAPI) AttachVolume(_ context.Context, _ *ec2.AttachVolumeInput, _ ...func(*ec2.Options)) (*ec2.AttachVolumeOutput, error) {
	f.record("AttachVolume")
	return &ec2.AttachVolumeOutput{}, nil
}

func (f *fakeAPI) DetachVolume(_ context.Context, _ *ec2.DetachVolumeInput, _ ...func(*ec2.Options)) (*ec2.DetachVolumeOutput, error) {
	f.record("DetachVolume")
	return &ec2.DetachVolumeOutput{}, nil
}

func (f *fakeAPI) DeleteVolume(_ context.Context, in *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
	f.record("DeleteVolume")
	if f.deleteVolume != nil {
		return f.deleteVolume(in)
	}
	return &ec2.DeleteVolumeOutput{}, nil
}

func (f *fakeAPI) CreateSnapshot(_ context.Context, _ *ec2.CreateSnapshotInput, _ ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error) {
	f.record("CreateSnapshot")
	return &ec2.CreateSnapshotOutput{}, nil
}

func (f *fakeAPI) DescribeSnapshots(_ context.Context, in *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	f.record("DescribeSnapshots")
	if f.describeSnapshots != nil {
		return f.describeSnapshots(in)
	}
	return &ec2.DescribeSnapshotsOutput{}, nil
}

func (f *fakeAPI) DeleteSnapshot(_ context.Context, _ *ec2.DeleteSnapshotInput, _ ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error) {
	f.record("DeleteSnapshot")
	return &ec2.DeleteSnapshotOutput{}, nil
}

func (f *fakeAPI) RegisterImage(_ context.Context, in *ec2.RegisterImageInput, _ ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error) {
	f.record("RegisterImage")
	if f.registerImage != nil {
		return f.registerImage(in)
	}
	return &ec2.RegisterImageOutput{}, nil
}

func (f *fakeAPI) CreateImage(_ context.Context, _ *ec2.CreateImageInput, _ ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	f.record("CreateImage")
	return &ec2.CreateImageOutput{}, nil
}

func (f *fakeAPI) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.record("DescribeImages")
	if f.describeImages != nil {
		return f.describeImages(in)
	}
	return &ec2.DescribeImagesOutput{}, nil
}

func (f *fakeAPI) DeregisterImage(_ context.Context, _ *ec2.DeregisterImageInput, _ ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error) {
	f.record("DeregisterImage")
	return &ec2.DeregisterImageOutput{}, nil
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func testClient(api API) *Client {
	c, err := NewClient(context.Background(), "us-east-1", "", "",
		WithAPI(api), WithTimeouts(config.TestTimeouts()))
	if err != nil {
		panic(err)
	}
	return c
}
