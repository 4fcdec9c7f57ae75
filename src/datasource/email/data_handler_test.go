package email

import (
	"testing"

	"CustomerAnalytics/src/datasource/file"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataFrameWrapperLoadAttachment(t *testing.T) {
	var d DataFrameWrapper
	att := &Attachment{Filename: "flo.csv", Content: []byte(exportCSV)}

	changed, err := d.LoadAttachment(att, file.Options{})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, d.GetDF().Nrow())
	assert.Equal(t, "flo.csv", d.Source())

	changed, err = d.LoadAttachment(&Attachment{Filename: "again.csv", Content: []byte(exportCSV)}, file.Options{})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "flo.csv", d.Source())

	_, err = d.LoadAttachment(&Attachment{Filename: "flo.pdf", Content: []byte("%PDF")}, file.Options{})
	assert.Error(t, err)
	_, err = d.LoadAttachment(nil, file.Options{})
	assert.Error(t, err)

	assert.Len(t, Fingerprint([]byte("x")), 32)
}
