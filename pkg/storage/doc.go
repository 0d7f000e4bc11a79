// Package storage writes harvested images to disk.
//
// The Manager is the disk writer behind the harvest sink. Files are written
// through a temporary file and renamed into place, so a crash never leaves
// a truncated image under its final name. With query folders enabled each
// search gets its own slugified subdirectory. An existing file is kept
// unless overwriting is enabled; names are derived from the image URL, so
// a kept file is the same image.
//
// Usage:
//
//	manager, err := storage.NewManager(storage.Options{
//		BaseDirectory:      cfg.Output.BaseDirectory,
//		CreateQueryFolders: cfg.Output.CreateQueryFolders,
//		Overwrite:          cfg.Output.OverwriteExisting,
//	}, log)
//	if err != nil {
//		return err
//	}
//	path, err := manager.Write(ctx, processedImage)
package storage
