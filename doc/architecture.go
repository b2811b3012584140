package doc

import "github.com/kurafs/netfs/pkg/cli"

var ArchitectureCmd = &cli.Command{
	UsageLine: "architecture",
	Short:     "netfs system architecture overview",
	Long: `
netfs is made of two processes.

storage-server exports one local directory, the export root, through the
netfs.FileService gRPC service. Requests name slash-separated paths that
are cleaned and resolved inside the export root. Messages are CBOR
encoded and may be zstd compressed. The same port also answers grpc-web
requests and serves Prometheus metrics at /metrics.

fuse-server mounts a directory of that namespace, the mount root, on the
local machine. Every filesystem call is rewritten onto the mount root and
answered by the storage server.

The service offers:

    CreateFile, GetFileStat, MakeDir, RemoveDir, RemoveFile, Rename
        single request, single response
    TestAuth
        reports whether a client's copy of a file is stale
    FetchDir, Fetch
        stream a directory listing or a file's content in 4 KiB blocks
    Store
        streams a header followed by the file's content in 4 KiB blocks

Failures travel as gRPC statuses whose message starts with an error kind
(NotFound, AlreadyExists, PermissionDenied, InvalidArgument,
TransferIncomplete, TransportFailure, NotEmpty, NotDirectory,
IsDirectory). The mount turns kinds back into errnos.

See 'netfs help consistency' for when changes become visible.
`,
}
