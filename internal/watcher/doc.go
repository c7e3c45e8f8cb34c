// Package watcher observes the storage root for changes made by other
// processes.
//
// Events come from fsnotify, are debounced so that one persist (several
// temp writes and renames) produces a single batch, and are reported with
// paths relative to the storage root. Hidden entries (staging, trash, lock
// and temp files) are filtered out.
//
// Usage:
//
//	w, err := watcher.NewStorageWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, root); err != nil {
//	    return err
//	}
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        // event.Path is "<corpus>" or "<corpus>/<file>"
//	    }
//	}
package watcher
