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

// Package cli builds git-style command-line interfaces: a top-level program
// followed by a sub-command (netfs {storage-server,fuse-server}) and help
// topics (netfs help architecture). There are no init-time hooks; the
// program assembles its commands and hands them to Process.
//
//     var commands cli.Commands
//     commands = append(commands, storageserver.StorageServerCmd)
//     commands = append(commands, fuseserver.FuseServerCmd)
//     commands = append(commands, doc.ArchitectureCmd)
//
//     abstract := "netfs exposes a remote directory tree at a local mount point."
//     if err := cli.Process(abstract, commands); err != nil {
//         os.Exit(1)
//     }
//
// which yields:
//
//     $ netfs help
//     netfs exposes a remote directory tree at a local mount point.
//
//     Usage:
//
//         netfs command [arguments]
//
//     The commands are:
//
//         storage-server         serve an export root over RPC
//         fuse-server            mount a remote export root
//
//     Use 'netfs help [command]' for more information about a command.
//
//     Additional help topics:
//
//         architecture           netfs system architecture overview
//
// Individual commands have their own '-h' switches listing their flags.
package cli
