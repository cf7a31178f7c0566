package readers

import (
	"os"
)

// TxtFileReader loads Markdown and plain text files verbatim.
type TxtFileReader struct{}

func (r *TxtFileReader) Format() Format {
	return Markdown
}

func (r *TxtFileReader) ReadText(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", ioError("reading text file", path, err)
	}

	return string(buf), nil
}
