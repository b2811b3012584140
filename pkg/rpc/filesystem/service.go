// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filesystem

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "netfs.FileService"

const (
	FileService_CreateFile_FullMethodName  = "/netfs.FileService/CreateFile"
	FileService_GetFileStat_FullMethodName = "/netfs.FileService/GetFileStat"
	FileService_MakeDir_FullMethodName     = "/netfs.FileService/MakeDir"
	FileService_RemoveDir_FullMethodName   = "/netfs.FileService/RemoveDir"
	FileService_RemoveFile_FullMethodName  = "/netfs.FileService/RemoveFile"
	FileService_Rename_FullMethodName      = "/netfs.FileService/Rename"
	FileService_TestAuth_FullMethodName    = "/netfs.FileService/TestAuth"
	FileService_FetchDir_FullMethodName    = "/netfs.FileService/FetchDir"
	FileService_Fetch_FullMethodName       = "/netfs.FileService/Fetch"
	FileService_Store_FullMethodName       = "/netfs.FileService/Store"
)

// FileServiceServer is the remote storage service. Every method executes
// synchronously against the server's export root; implementations must be
// safe for concurrent use.
type FileServiceServer interface {
	CreateFile(context.Context, *CreateRequest) (*StatusResponse, error)
	GetFileStat(context.Context, *PathRequest) (*Attr, error)
	MakeDir(context.Context, *CreateRequest) (*StatusResponse, error)
	RemoveDir(context.Context, *PathRequest) (*StatusResponse, error)
	RemoveFile(context.Context, *PathRequest) (*StatusResponse, error)
	Rename(context.Context, *RenameRequest) (*StatusResponse, error)
	TestAuth(context.Context, *TestAuthRequest) (*TestAuthResponse, error)
	FetchDir(*PathRequest, grpc.ServerStreamingServer[DirEntry]) error
	Fetch(*FetchRequest, grpc.ServerStreamingServer[Block]) error
	Store(grpc.ClientStreamingServer[StoreRequest, StoreResponse]) error
}

// UnimplementedFileServiceServer can be embedded by implementations that
// only serve part of the surface.
type UnimplementedFileServiceServer struct{}

func (UnimplementedFileServiceServer) CreateFile(context.Context, *CreateRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateFile not implemented")
}
func (UnimplementedFileServiceServer) GetFileStat(context.Context, *PathRequest) (*Attr, error) {
	return nil, status.Error(codes.Unimplemented, "method GetFileStat not implemented")
}
func (UnimplementedFileServiceServer) MakeDir(context.Context, *CreateRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MakeDir not implemented")
}
func (UnimplementedFileServiceServer) RemoveDir(context.Context, *PathRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveDir not implemented")
}
func (UnimplementedFileServiceServer) RemoveFile(context.Context, *PathRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveFile not implemented")
}
func (UnimplementedFileServiceServer) Rename(context.Context, *RenameRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Rename not implemented")
}
func (UnimplementedFileServiceServer) TestAuth(context.Context, *TestAuthRequest) (*TestAuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method TestAuth not implemented")
}
func (UnimplementedFileServiceServer) FetchDir(*PathRequest, grpc.ServerStreamingServer[DirEntry]) error {
	return status.Error(codes.Unimplemented, "method FetchDir not implemented")
}
func (UnimplementedFileServiceServer) Fetch(*FetchRequest, grpc.ServerStreamingServer[Block]) error {
	return status.Error(codes.Unimplemented, "method Fetch not implemented")
}
func (UnimplementedFileServiceServer) Store(grpc.ClientStreamingServer[StoreRequest, StoreResponse]) error {
	return status.Error(codes.Unimplemented, "method Store not implemented")
}

// RegisterFileServiceServer registers srv with s.
func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileService_ServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(FileServiceServer, context.Context, *Req) (interface{}, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FileServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FileServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _FileService_FetchDir_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(PathRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FileServiceServer).FetchDir(m, &grpc.GenericServerStream[PathRequest, DirEntry]{ServerStream: stream})
}

func _FileService_Fetch_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(FetchRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FileServiceServer).Fetch(m, &grpc.GenericServerStream[FetchRequest, Block]{ServerStream: stream})
}

func _FileService_Store_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FileServiceServer).Store(&grpc.GenericServerStream[StoreRequest, StoreResponse]{ServerStream: stream})
}

// FileService_ServiceDesc is the grpc.ServiceDesc for netfs.FileService.
var FileService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateFile",
			Handler: unaryHandler(FileService_CreateFile_FullMethodName, func(s FileServiceServer, ctx context.Context, in *CreateRequest) (interface{}, error) {
				return s.CreateFile(ctx, in)
			}),
		},
		{
			MethodName: "GetFileStat",
			Handler: unaryHandler(FileService_GetFileStat_FullMethodName, func(s FileServiceServer, ctx context.Context, in *PathRequest) (interface{}, error) {
				return s.GetFileStat(ctx, in)
			}),
		},
		{
			MethodName: "MakeDir",
			Handler: unaryHandler(FileService_MakeDir_FullMethodName, func(s FileServiceServer, ctx context.Context, in *CreateRequest) (interface{}, error) {
				return s.MakeDir(ctx, in)
			}),
		},
		{
			MethodName: "RemoveDir",
			Handler: unaryHandler(FileService_RemoveDir_FullMethodName, func(s FileServiceServer, ctx context.Context, in *PathRequest) (interface{}, error) {
				return s.RemoveDir(ctx, in)
			}),
		},
		{
			MethodName: "RemoveFile",
			Handler: unaryHandler(FileService_RemoveFile_FullMethodName, func(s FileServiceServer, ctx context.Context, in *PathRequest) (interface{}, error) {
				return s.RemoveFile(ctx, in)
			}),
		},
		{
			MethodName: "Rename",
			Handler: unaryHandler(FileService_Rename_FullMethodName, func(s FileServiceServer, ctx context.Context, in *RenameRequest) (interface{}, error) {
				return s.Rename(ctx, in)
			}),
		},
		{
			MethodName: "TestAuth",
			Handler: unaryHandler(FileService_TestAuth_FullMethodName, func(s FileServiceServer, ctx context.Context, in *TestAuthRequest) (interface{}, error) {
				return s.TestAuth(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "FetchDir",
			Handler:       _FileService_FetchDir_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "Fetch",
			Handler:       _FileService_Fetch_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "Store",
			Handler:       _FileService_Store_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "netfs/filesystem",
}

// FileServiceClient is the client API for netfs.FileService. Calls made
// through it always use the CBOR codec.
type FileServiceClient interface {
	CreateFile(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	GetFileStat(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*Attr, error)
	MakeDir(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	RemoveDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	RemoveFile(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	TestAuth(ctx context.Context, in *TestAuthRequest, opts ...grpc.CallOption) (*TestAuthResponse, error)
	FetchDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DirEntry], error)
	Fetch(ctx context.Context, in *FetchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Block], error)
	Store(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[StoreRequest, StoreResponse], error)
}

type fileServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFileServiceClient(cc grpc.ClientConnInterface) FileServiceClient {
	return &fileServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *fileServiceClient) CreateFile(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, FileService_CreateFile_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) GetFileStat(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*Attr, error) {
	out := new(Attr)
	if err := c.cc.Invoke(ctx, FileService_GetFileStat_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) MakeDir(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, FileService_MakeDir_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) RemoveDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, FileService_RemoveDir_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) RemoveFile(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, FileService_RemoveFile_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, FileService_Rename_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) TestAuth(ctx context.Context, in *TestAuthRequest, opts ...grpc.CallOption) (*TestAuthResponse, error) {
	out := new(TestAuthResponse)
	if err := c.cc.Invoke(ctx, FileService_TestAuth_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) FetchDir(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DirEntry], error) {
	stream, err := c.cc.NewStream(ctx, &FileService_ServiceDesc.Streams[0], FileService_FetchDir_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[PathRequest, DirEntry]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *fileServiceClient) Fetch(ctx context.Context, in *FetchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Block], error) {
	stream, err := c.cc.NewStream(ctx, &FileService_ServiceDesc.Streams[1], FileService_Fetch_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[FetchRequest, Block]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *fileServiceClient) Store(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[StoreRequest, StoreResponse], error) {
	stream, err := c.cc.NewStream(ctx, &FileService_ServiceDesc.Streams[2], FileService_Store_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[StoreRequest, StoreResponse]{ClientStream: stream}, nil
}
