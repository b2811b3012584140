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

package storageserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/kurafs/netfs/pkg/attr"
	"github.com/kurafs/netfs/pkg/fserr"
	"github.com/kurafs/netfs/pkg/log"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

func startServer(t *testing.T) (string, fspb.FileServiceClient) {
	t.Helper()

	root := t.TempDir()
	fileServer, err := NewFileServer(log.Discarder(), root)
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	fspb.RegisterFileServiceServer(grpcServer, fileServer)
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return root, fspb.NewFileServiceClient(conn)
}

func store(ctx context.Context, client fspb.FileServiceClient, path string, length int64, digest []byte, blocks ...[]byte) (*fspb.StoreResponse, error) {
	stream, err := client.Store(ctx)
	if err != nil {
		return nil, err
	}
	if err := stream.Send(&fspb.StoreRequest{Header: &fspb.StoreHeader{Path: path, Length: length, Digest: digest}}); err != nil {
		return stream.CloseAndRecv()
	}
	for _, b := range blocks {
		if err := stream.Send(&fspb.StoreRequest{Data: b}); err != nil {
			return stream.CloseAndRecv()
		}
	}
	return stream.CloseAndRecv()
}

func fetch(ctx context.Context, client fspb.FileServiceClient, path string) ([]byte, error) {
	stream, err := client.Fetch(ctx, &fspb.FetchRequest{Path: path})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for {
		b, err := stream.Recv()
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		if len(b.Data) > fspb.BlockSize {
			return nil, status.Errorf(codes.Internal, "block of %d bytes", len(b.Data))
		}
		buf.Write(b.Data)
	}
}

func fetchDir(ctx context.Context, client fspb.FileServiceClient, path string) ([]string, error) {
	stream, err := client.FetchDir(ctx, &fspb.PathRequest{Path: path})
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		e, err := stream.Recv()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, e.Name)
	}
}

func kind(err error) fserr.Kind {
	return fserr.KindOf(fserr.FromStatus("test", "", err))
}

func blocksOf(data []byte) [][]byte {
	var blocks [][]byte
	for len(data) > 0 {
		n := fspb.BlockSize
		if n > len(data) {
			n = len(data)
		}
		blocks = append(blocks, data[:n])
		data = data[n:]
	}
	return blocks
}

func stagingEmpty(t *testing.T, root string) bool {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, stagingDir))
	if err != nil {
		t.Fatal(err)
	}
	return len(entries) == 0
}

func TestStoreFetchRoundTrip(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	for _, size := range []int{0, 1, fspb.BlockSize - 1, fspb.BlockSize, fspb.BlockSize + 1, 3*fspb.BlockSize + 5} {
		content := make([]byte, size)
		for i := range content {
			content[i] = byte(i * 7)
		}
		sum := blake2b.Sum256(content)

		res, err := store(ctx, client, "/file.bin", int64(size), sum[:], blocksOf(content)...)
		if err != nil {
			t.Fatalf("size %d: store: %v", size, err)
		}
		if res.Written != int64(size) {
			t.Errorf("size %d: expected %d bytes written, got %d", size, size, res.Written)
		}

		got, err := fetch(ctx, client, "/file.bin")
		if err != nil {
			t.Fatalf("size %d: fetch: %v", size, err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("size %d: fetched content differs from stored content", size)
		}
	}
	if !stagingEmpty(t, root) {
		t.Error("expected staging area to be empty after commits")
	}
}

func TestStoreShortNeverVisible(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store(ctx, client, "/notes.txt", 8192, nil, make([]byte, 4096))
	if k := kind(err); k != fserr.TransferIncomplete {
		t.Fatalf("expected TransferIncomplete, got %v (%v)", k, err)
	}

	got, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "old" {
		t.Errorf("expected prior content to survive, got %q", got)
	}
	if !stagingEmpty(t, root) {
		t.Error("expected staging file to be discarded")
	}
}

func TestStoreDroppedConnection(t *testing.T) {
	root, client := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(&fspb.StoreRequest{Header: &fspb.StoreHeader{Path: "/big.bin", Length: 8192}}); err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(&fspb.StoreRequest{Data: make([]byte, 4096)}); err != nil {
		t.Fatal(err)
	}
	// Give the server a chance to stage the first block before the drop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for !stagingEmpty(t, root) {
		if time.Now().After(deadline) {
			t.Fatal("staging file was not discarded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(filepath.Join(root, "big.bin")); !os.IsNotExist(err) {
		t.Errorf("expected big.bin to stay absent, got %v", err)
	}
}

// stagedBytes returns the number of bytes held in the staging area.
func stagedBytes(t *testing.T, root string) int64 {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, stagingDir))
	if err != nil {
		t.Fatal(err)
	}
	var n int64
	for _, e := range entries {
		if fi, err := e.Info(); err == nil {
			n += fi.Size()
		}
	}
	return n
}

func TestStoreInvisibleWhileInFlight(t *testing.T) {
	root, client := startServer(t)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := client.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(&fspb.StoreRequest{Header: &fspb.StoreHeader{Path: "/notes.txt", Length: 8192}}); err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(&fspb.StoreRequest{Data: bytes.Repeat([]byte("n"), 4096)}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for stagedBytes(t, root) < 4096 {
		if time.Now().After(deadline) {
			t.Fatal("first block never reached the staging area")
		}
		time.Sleep(10 * time.Millisecond)
	}

	check := func(when string) {
		t.Helper()
		got, err := fetch(context.Background(), client, "/notes.txt")
		if err != nil {
			t.Fatalf("%s: %v", when, err)
		}
		if string(got) != "old" {
			t.Errorf("%s: expected fetch to return prior content, got %d bytes", when, len(got))
		}
		st, err := client.GetFileStat(context.Background(), &fspb.PathRequest{Path: "/notes.txt"})
		if err != nil {
			t.Fatalf("%s: %v", when, err)
		}
		if st.Size != 3 {
			t.Errorf("%s: expected size 3, got %d", when, st.Size)
		}
	}
	check("during upload")

	cancel()
	deadline = time.Now().Add(5 * time.Second)
	for !stagingEmpty(t, root) {
		if time.Now().After(deadline) {
			t.Fatal("staging file was not discarded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	check("after the stream broke")
}

func TestStoreRejects(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	if err := os.Mkdir(filepath.Join(root, "dir"), 0755); err != nil {
		t.Fatal(err)
	}

	// Exceeding the declared length.
	_, err := store(ctx, client, "/over.bin", 10, nil, make([]byte, 11))
	if k := kind(err); k != fserr.InvalidArgument {
		t.Errorf("over length: expected InvalidArgument, got %v (%v)", k, err)
	}
	if _, err := os.Stat(filepath.Join(root, "over.bin")); !os.IsNotExist(err) {
		t.Errorf("over length: expected destination to stay absent, got %v", err)
	}

	// Digest mismatch.
	sum := blake2b.Sum256([]byte("something else"))
	_, err = store(ctx, client, "/digest.bin", 5, sum[:], []byte("hello"))
	if k := kind(err); k != fserr.TransferIncomplete {
		t.Errorf("digest: expected TransferIncomplete, got %v (%v)", k, err)
	}

	for name, header := range map[string]*fspb.StoreHeader{
		"negative length": {Path: "/neg", Length: -1},
		"empty path":      {Path: "", Length: 0},
		"staging area":    {Path: "/" + stagingDir + "/x", Length: 0},
		"short digest":    {Path: "/d", Length: 0, Digest: []byte{1, 2}},
	} {
		_, err := store(ctx, client, header.Path, header.Length, header.Digest)
		if k := kind(err); k != fserr.InvalidArgument {
			t.Errorf("%s: expected InvalidArgument, got %v (%v)", name, k, err)
		}
	}

	_, err = store(ctx, client, "/dir", 0, nil)
	if k := kind(err); k != fserr.IsDirectory {
		t.Errorf("directory destination: expected IsDirectory, got %v (%v)", k, err)
	}
	_, err = store(ctx, client, "/missing/file", 0, nil)
	if k := kind(err); k != fserr.NotFound {
		t.Errorf("missing parent: expected NotFound, got %v (%v)", k, err)
	}

	// A stream that never sends its header.
	stream, err := client.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.Send(&fspb.StoreRequest{Data: []byte("data")}); err != nil {
		t.Fatal(err)
	}
	if _, err := stream.CloseAndRecv(); kind(err) != fserr.InvalidArgument {
		t.Errorf("headerless stream: expected InvalidArgument, got %v", err)
	}

	stream, err = client.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.CloseAndRecv(); kind(err) != fserr.InvalidArgument {
		t.Errorf("empty stream: expected InvalidArgument, got %v", err)
	}

	if !stagingEmpty(t, root) {
		t.Error("expected staging area to be empty")
	}
}

func TestStoreKeepsMode(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	name := filepath.Join(root, "secret")
	if err := os.WriteFile(name, []byte("a"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store(ctx, client, "/secret", 2, nil, []byte("bb")); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(name)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600 to be kept, got %v", fi.Mode().Perm())
	}

	if _, err := store(ctx, client, "/fresh", 1, nil, []byte("c")); err != nil {
		t.Fatal(err)
	}
	fi, err = os.Stat(filepath.Join(root, "fresh"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0644 {
		t.Errorf("expected new file mode 0644, got %v", fi.Mode().Perm())
	}
}

func TestFetchErrors(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	if err := os.Mkdir(filepath.Join(root, "dir"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := fetch(ctx, client, "/missing"); kind(err) != fserr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := fetch(ctx, client, "/dir"); kind(err) != fserr.IsDirectory {
		t.Errorf("expected IsDirectory, got %v", err)
	}
}

func TestFetchDir(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	if err := os.Mkdir(filepath.Join(root, "d"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b"} {
		if err := os.WriteFile(filepath.Join(root, "d", name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := fetchDir(ctx, client, "/d")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 4 || names[0] != "." || names[1] != ".." {
		t.Fatalf("expected . and .. first, got %v", names)
	}
	rest := append([]string(nil), names[2:]...)
	sort.Strings(rest)
	if rest[0] != "a" || rest[1] != "b" {
		t.Errorf("expected children {a, b}, got %v", names[2:])
	}

	// The staging area is not part of the exported tree.
	names, err = fetchDir(ctx, client, "/")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 || names[2] != "d" {
		t.Errorf("expected {., .., d} at the root, got %v", names)
	}

	if _, err := fetchDir(ctx, client, "/d/a"); kind(err) != fserr.NotDirectory {
		t.Errorf("expected NotDirectory, got %v", err)
	}
	if _, err := fetchDir(ctx, client, "/nope"); kind(err) != fserr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestFetchDirTypes(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "file"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	stream, err := client.FetchDir(ctx, &fspb.PathRequest{Path: "/"})
	if err != nil {
		t.Fatal(err)
	}
	modes := make(map[string]uint32)
	for {
		e, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		modes[e.Name] = e.Mode
	}
	if modes["sub"] != attr.TypeDir || modes["."] != attr.TypeDir {
		t.Errorf("expected directory type bits, got %o and %o", modes["sub"], modes["."])
	}
	if modes["file"] != attr.TypeRegular {
		t.Errorf("expected regular file type bits, got %o", modes["file"])
	}
}

func TestTestAuth(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	name := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(name, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	t1 := time.Unix(1541030400, 500)
	if err := os.Chtimes(name, t1, t1); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		client time.Time
		want   fspb.AuthStatus
	}{
		{t1, fspb.Fresh},
		{t1.Add(time.Second), fspb.Fresh},
		{t1.Add(-time.Nanosecond), fspb.Stale},
		{t1.Add(-time.Hour), fspb.Stale},
	} {
		res, err := client.TestAuth(ctx, &fspb.TestAuthRequest{
			Path:  "/notes.txt",
			Mtime: attr.EncodeTime(attr.FromTime(tc.client)),
		})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != tc.want {
			t.Errorf("client mtime %v: expected %v, got %v", tc.client, tc.want, res.Status)
		}
	}

	_, err := client.TestAuth(ctx, &fspb.TestAuthRequest{Path: "/gone"})
	if kind(err) != fserr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestPrimitives(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	if _, err := client.CreateFile(ctx, &fspb.CreateRequest{Path: "/f", Mode: 0640}); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(root, "f"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0640&^currentUmask() {
		t.Errorf("unexpected mode %v", fi.Mode())
	}
	if _, err := client.CreateFile(ctx, &fspb.CreateRequest{Path: "/f", Mode: 0644}); kind(err) != fserr.AlreadyExists {
		t.Errorf("create existing: expected AlreadyExists, got %v", err)
	}
	if _, err := client.CreateFile(ctx, &fspb.CreateRequest{Path: "/nodir/f", Mode: 0644}); kind(err) != fserr.NotFound {
		t.Errorf("create in missing directory: expected NotFound, got %v", err)
	}

	a, err := client.GetFileStat(ctx, &fspb.PathRequest{Path: "f"})
	if err != nil {
		t.Fatal(err)
	}
	if st := attr.Decode(a); st.Size != 0 || st.IsDir() {
		t.Errorf("unexpected stat %+v", st)
	}
	if _, err := client.GetFileStat(ctx, &fspb.PathRequest{Path: "/missing"}); kind(err) != fserr.NotFound {
		t.Errorf("stat missing: expected NotFound, got %v", err)
	}

	if _, err := client.MakeDir(ctx, &fspb.CreateRequest{Path: "/d", Mode: 0755}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.MakeDir(ctx, &fspb.CreateRequest{Path: "/d", Mode: 0755}); kind(err) != fserr.AlreadyExists {
		t.Errorf("mkdir existing: expected AlreadyExists, got %v", err)
	}
	if _, err := client.Rename(ctx, &fspb.RenameRequest{OldPath: "/f", NewPath: "/d/g"}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Rename(ctx, &fspb.RenameRequest{OldPath: "/f", NewPath: "/h"}); kind(err) != fserr.NotFound {
		t.Errorf("rename missing: expected NotFound, got %v", err)
	}

	if _, err := client.RemoveDir(ctx, &fspb.PathRequest{Path: "/d"}); kind(err) != fserr.NotEmpty {
		t.Errorf("rmdir non-empty: expected NotEmpty, got %v", err)
	}
	if _, err := client.RemoveDir(ctx, &fspb.PathRequest{Path: "/d/g"}); kind(err) != fserr.NotDirectory {
		t.Errorf("rmdir file: expected NotDirectory, got %v", err)
	}
	if _, err := client.RemoveFile(ctx, &fspb.PathRequest{Path: "/d"}); kind(err) != fserr.IsDirectory {
		t.Errorf("unlink directory: expected IsDirectory, got %v", err)
	}
	if _, err := client.RemoveFile(ctx, &fspb.PathRequest{Path: "/d/g"}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.RemoveFile(ctx, &fspb.PathRequest{Path: "/d/g"}); kind(err) != fserr.NotFound {
		t.Errorf("unlink missing: expected NotFound, got %v", err)
	}
	if _, err := client.RemoveDir(ctx, &fspb.PathRequest{Path: "/d"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "d")); !os.IsNotExist(err) {
		t.Errorf("expected /d to be gone, got %v", err)
	}
}

func TestPathsStayInsideRoot(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(root), "outside-"+filepath.Base(root))
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(outside)

	escape := "/../" + filepath.Base(outside)
	if _, err := client.GetFileStat(ctx, &fspb.PathRequest{Path: escape}); kind(err) != fserr.NotFound {
		t.Errorf("expected escaping path to resolve inside the root, got %v", err)
	}
	if _, err := client.RemoveDir(ctx, &fspb.PathRequest{Path: "/"}); kind(err) != fserr.InvalidArgument {
		t.Errorf("expected removing the root to be refused, got %v", err)
	}
	if _, err := client.GetFileStat(ctx, &fspb.PathRequest{Path: "/" + stagingDir}); kind(err) != fserr.InvalidArgument {
		t.Errorf("expected the staging area to be unreachable, got %v", err)
	}
}

func TestSymlinksStayInsideRoot(t *testing.T) {
	root, client := startServer(t)
	ctx := context.Background()

	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "dirlink")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "filelink")); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "inside"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("inside", filepath.Join(root, "insidelink")); err != nil {
		t.Fatal(err)
	}

	if _, err := fetch(ctx, client, "/dirlink/secret"); kind(err) != fserr.PermissionDenied {
		t.Errorf("fetch through a link out of the root: expected PermissionDenied, got %v", err)
	}
	if _, err := store(ctx, client, "/dirlink/planted", 1, nil, []byte("x")); kind(err) != fserr.PermissionDenied {
		t.Errorf("store through a link out of the root: expected PermissionDenied, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "planted")); !os.IsNotExist(err) {
		t.Errorf("expected nothing written outside the root, got %v", err)
	}
	if _, err := fetchDir(ctx, client, "/dirlink/."); kind(err) != fserr.PermissionDenied && kind(err) != fserr.InvalidArgument {
		t.Errorf("readdir of a link out of the root: expected refusal, got %v", err)
	}
	if _, err := fetch(ctx, client, "/filelink"); kind(err) != fserr.InvalidArgument {
		t.Errorf("fetch of a link to a file outside the root: expected InvalidArgument, got %v", err)
	}

	// Links that stay inside the root keep working as directories.
	if _, err := store(ctx, client, "/insidelink/f", 2, nil, []byte("ok")); err != nil {
		t.Fatalf("store through a link inside the root: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "inside", "f"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ok" {
		t.Errorf("expected %q, got %q", "ok", got)
	}
}

func TestStaleUploadsDiscardedOnStart(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, stagingDir), 0700); err != nil {
		t.Fatal(err)
	}
	leftover := filepath.Join(root, stagingDir, "upload-123")
	if err := os.WriteFile(leftover, []byte("partial"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileServer(log.Discarder(), root); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Errorf("expected leftover upload to be removed, got %v", err)
	}
}

// currentUmask returns the process umask without changing it.
func currentUmask() os.FileMode {
	mask := unix.Umask(0)
	unix.Umask(mask)
	return os.FileMode(mask)
}
