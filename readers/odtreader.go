package readers

import (
	"os"

	"code.sajari.com/docconv/v2"
)

// OdtFileReader extracts the text body of OpenDocument files.
type OdtFileReader struct{}

func (r *OdtFileReader) Format() Format {
	return ODT
}

func (r *OdtFileReader) ReadText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ioError("opening odt file", path, err)
	}
	defer f.Close()

	body, _, err := docconv.ConvertODT(f)
	if err != nil {
		return "", conversionError(ODT, path, err)
	}

	return body, nil
}
