package jobs

import "os"

// OutputMode is the permission used when a redirection target is created.
const OutputMode os.FileMode = 0o666

// Resolve opens the redirection targets of a command. Empty paths yield nil
// files. The caller owns the returned files and closes them once the child
// has been started; nothing here touches the shell's own streams.
func Resolve(inputPath, outputPath string) (in, out *os.File, err error) {
	if inputPath != "" {
		in, err = os.Open(inputPath)
		if err != nil {
			return nil, nil, &RedirectOpenError{Path: inputPath, Mode: "input", Err: err}
		}
	}
	if outputPath != "" {
		out, err = os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, OutputMode)
		if err != nil {
			if in != nil {
				_ = in.Close()
			}
			return nil, nil, &RedirectOpenError{Path: outputPath, Mode: "output", Err: err}
		}
	}
	return in, out, nil
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
