package doc

import "github.com/kurafs/netfs/pkg/cli"

var ConsistencyCmd = &cli.Command{
	UsageLine: "consistency",
	Short:     "when changes made through netfs become visible",
	Long: `
netfs moves whole files and offers close-to-open consistency.

Opening a file makes sure the mount holds a current local copy. If a copy
from an earlier open exists, the server is asked whether its modification
time is newer than the one recorded with the copy; only then is the file
fetched again. A file that is still open on the mount is never fetched
again, so local edits are not lost.

Reads and writes only touch the local copy. Closing, flushing or syncing a
modified file uploads all of it. A copy with changes the server has not
acknowledged, because the upload failed or the mount went away first, is
never handed to a later open; the server's content is fetched instead.
The server writes the upload to a
staging area and renames it over the file once every byte has arrived and
the optional BLAKE2b-256 digest matches, so other clients see either the
old or the new content, never a mix. When two clients upload the same
file, the upload that completes last wins.

Directory operations (mkdir, rmdir, unlink, rename) take effect on the
server immediately. Attributes are cached by the mount for -attr-ttl.

If the server cannot be reached, opening a file fails with EIO even when
a local copy exists.

The server only follows symbolic links that stay inside its export root.
A path leading out of the root through a link is refused, and a link
as the last component of an opened file is not followed.
`,
}
