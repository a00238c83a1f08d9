// Package fs abstracts the file system for checkpoint files.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS] to make
// selected steps of a checkpoint save fail, such as the sync of the temporary
// file or its rename over the previous checkpoint:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailOnSync: true, FailAfterBytes: -1})
package fs
