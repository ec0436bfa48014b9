package trv

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestXML(t *testing.T) {
	since := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	t.Run("first page", func(t *testing.T) {
		got := BuildRequestXML("secret-key", Query{Since: since, PageSize: 500})

		assert.Contains(t, got, `<LOGIN authenticationkey="secret-key"/>`)
		assert.Contains(t, got, `objecttype="Situation" schemaversion="1" limit="500"`)
		assert.Contains(t, got, `orderby="ModifiedTime desc, Deviation.StartTime desc"`)
		assert.Contains(t, got, `<GT name="Deviation.StartTime" value="2026-03-09T12:00:00Z"/>`)
		assert.Contains(t, got, `<GT name="ModifiedTime" value="2026-03-09T12:00:00Z"/>`)
		assert.NotContains(t, got, "<LT")
		assert.Contains(t, got, "<INCLUDE>Deviation.Geometry.WGS84</INCLUDE>")
	})

	t.Run("cursor adds bound with tie-break", func(t *testing.T) {
		got := BuildRequestXML("k", Query{
			Since:    since,
			PageSize: 100,
			Cursor:   &Cursor{ModifiedTime: "2026-03-10T08:00:00.000Z", StartTime: "2026-03-10T06:00:00.000Z"},
		})

		// Strictly older modified times, or the rest of an equal-ModifiedTime
		// run beyond the last start time.
		assert.Contains(t, got, `<LT name="ModifiedTime" value="2026-03-10T08:00:00.000Z"/>`)
		assert.Contains(t, got, `<EQ name="ModifiedTime" value="2026-03-10T08:00:00.000Z"/>`)
		assert.Contains(t, got, `<LT name="Deviation.StartTime" value="2026-03-10T06:00:00.000Z"/>`)
		assert.NotContains(t, got, "<LTE")
	})

	t.Run("cursor without start time uses inclusive bound", func(t *testing.T) {
		got := BuildRequestXML("k", Query{
			Since:    since,
			PageSize: 100,
			Cursor:   &Cursor{ModifiedTime: "2026-03-10T08:00:00.000Z"},
		})

		assert.Contains(t, got, `<LTE name="ModifiedTime" value="2026-03-10T08:00:00.000Z"/>`)
		assert.NotContains(t, got, `<EQ name="ModifiedTime"`)
	})

	t.Run("future cap bounds speculative incidents", func(t *testing.T) {
		capAt := since.Add(14 * 24 * time.Hour)
		got := BuildRequestXML("k", Query{Since: since, PageSize: 100, FutureCap: &capAt})

		assert.Contains(t, got, `<LT name="Deviation.StartTime" value="2026-03-23T12:00:00Z"/>`)
	})

	t.Run("since normalized to utc", func(t *testing.T) {
		stockholm := time.FixedZone("CET", 3600)
		got := BuildRequestXML("k", Query{Since: time.Date(2026, 3, 9, 13, 0, 0, 0, stockholm), PageSize: 10})

		assert.Contains(t, got, `value="2026-03-09T12:00:00Z"`)
	})

	t.Run("api key is escaped", func(t *testing.T) {
		got := BuildRequestXML(`key"with<chars`, Query{Since: since, PageSize: 10})

		assert.NotContains(t, got, `key"with<chars`)
		require.NoError(t, xml.Unmarshal([]byte(got), new(struct{})))
	})

	t.Run("well formed document", func(t *testing.T) {
		got := BuildRequestXML("k", Query{Since: since, PageSize: 10})
		dec := xml.NewDecoder(strings.NewReader(got))
		for {
			_, err := dec.Token()
			if err != nil {
				assert.Equal(t, "EOF", err.Error())
				break
			}
		}
	})
}
