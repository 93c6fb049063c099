package formfile

import (
	"bytes"
	"io"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePartRoundTrip(t *testing.T) {
	cases := []struct {
		name        string
		filename    string
		contentType string
		wantType    string
	}{
		{name: "plain", filename: "fish.png", contentType: "image/png", wantType: "image/png"},
		{name: "quotes and backslash", filename: `blue "cobalt" \ 1.jpg`, contentType: "image/jpeg", wantType: "image/jpeg"},
		{name: "non ascii", filename: "discus é 鱼.png", contentType: "image/png", wantType: "image/png"},
		{name: "default type", filename: "raw.bin", wantType: "application/octet-stream"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			part, err := CreatePart(w, "file", tc.filename, tc.contentType)
			require.NoError(t, err)
			_, err = part.Write([]byte("payload"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r := multipart.NewReader(&buf, w.Boundary())
			p, err := r.NextPart()
			require.NoError(t, err)
			assert.Equal(t, "file", p.FormName())
			assert.Equal(t, tc.filename, p.FileName())
			assert.Equal(t, tc.wantType, p.Header.Get("Content-Type"))
			data, err := io.ReadAll(p)
			require.NoError(t, err)
			assert.Equal(t, "payload", string(data))
		})
	}
}
