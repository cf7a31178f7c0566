package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const odtContent = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body>
<office:text>
<text:p>Hello ODT</text:p>
<text:p>Second paragraph</text:p>
</office:text>
</office:body>
</office:document-content>`

func Test_OdtFileReader_ReadText(t *testing.T) {
	path := writeZip(t, "doc.odt", map[string]string{
		"mimetype":    "application/vnd.oasis.opendocument.text",
		"content.xml": odtContent,
	})

	r := OdtFileReader{}
	txt, err := r.ReadText(path)
	require.NoError(t, err)

	assert.Contains(t, txt, "Hello ODT")
	assert.Contains(t, txt, "Second paragraph")
}

func Test_OdtFileReader_Corrupt(t *testing.T) {
	r := OdtFileReader{}

	_, err := r.ReadText(writeFile(t, "doc.odt", "not a zip archive"))
	assert.ErrorIs(t, err, ErrConversion)

	_, err = r.ReadText(writeZip(t, "empty.odt", map[string]string{"mimetype": "x"}))
	assert.ErrorIs(t, err, ErrConversion)
}
