package file

// Flushes pending lines and closes the file
func (mod *OutModule) Shutdown() (err error) {
	if mod == nil {
		return
	}

	_, err = mod.FlushBuffer()
	if mod.sink != nil {
		closeErr := mod.sink.Close()
		if err == nil {
			err = closeErr
		}
	}
	return
}
