package trv

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Cursor marks pagination progress: the (modified time, start time) pair of
// the last record on the previous page, kept as raw wire strings so the
// follow-up filter value matches the upstream's own encoding.
type Cursor struct {
	ModifiedTime string
	StartTime    string
}

// Query describes one upstream page request.
type Query struct {
	Since     time.Time
	FutureCap *time.Time // upper bound on speculative future incidents, nil for none
	Cursor    *Cursor    // nil on the first page
	PageSize  int
}

// includeFields is the inclusion list sent with every query: situation-level
// identity plus the deviation fields the normalizer consumes.
var includeFields = []string{
	"Id",
	"ModifiedTime",
	"PublicationTime",
	"Deviation.Id",
	"Deviation.Message",
	"Deviation.MessageType",
	"Deviation.LocationDescriptor",
	"Deviation.RoadNumber",
	"Deviation.CountyNo",
	"Deviation.StartTime",
	"Deviation.EndTime",
	"Deviation.Status",
	"Deviation.Geometry.WGS84",
}

// BuildRequestXML assembles the upstream query body: Situation objects
// modified or starting after Since, newest first, one page of PageSize
// records. A cursor adds an upper bound matching the sort order so the
// follow-up page continues exactly where the previous one ended.
func BuildRequestXML(apiKey string, q Query) string {
	since := isoZ(q.Since)

	var b strings.Builder
	b.WriteString("<REQUEST>\n")
	fmt.Fprintf(&b, "  <LOGIN authenticationkey=\"%s\"/>\n", escape(apiKey))
	fmt.Fprintf(&b, "  <QUERY objecttype=\"Situation\" schemaversion=\"1\" limit=\"%d\" orderby=\"ModifiedTime desc, Deviation.StartTime desc\">\n", q.PageSize)
	b.WriteString("    <FILTER>\n")
	b.WriteString("      <OR>\n")
	fmt.Fprintf(&b, "        <GT name=\"Deviation.StartTime\" value=\"%s\"/>\n", since)
	fmt.Fprintf(&b, "        <GT name=\"ModifiedTime\" value=\"%s\"/>\n", since)
	b.WriteString("      </OR>\n")
	if q.FutureCap != nil {
		fmt.Fprintf(&b, "      <LT name=\"Deviation.StartTime\" value=\"%s\"/>\n", isoZ(*q.FutureCap))
	}
	if q.Cursor != nil {
		writeCursorFilter(&b, q.Cursor)
	}
	b.WriteString("    </FILTER>\n")
	for _, field := range includeFields {
		fmt.Fprintf(&b, "    <INCLUDE>%s</INCLUDE>\n", field)
	}
	b.WriteString("  </QUERY>\n")
	b.WriteString("</REQUEST>")
	return b.String()
}

// writeCursorFilter emits the follow-up page bound for the
// "ModifiedTime desc, Deviation.StartTime desc" ordering: records with a
// strictly older modified time, plus the tail of an equal-ModifiedTime run
// past the last yielded start time. A strict bound on ModifiedTime alone
// would cut such a run off at the page boundary. A cursor without a start
// time degrades to an inclusive bound; the caller's seen-set absorbs the
// re-read.
func writeCursorFilter(b *strings.Builder, c *Cursor) {
	if c.StartTime == "" {
		fmt.Fprintf(b, "      <LTE name=\"ModifiedTime\" value=\"%s\"/>\n", escape(c.ModifiedTime))
		return
	}
	b.WriteString("      <OR>\n")
	fmt.Fprintf(b, "        <LT name=\"ModifiedTime\" value=\"%s\"/>\n", escape(c.ModifiedTime))
	b.WriteString("        <AND>\n")
	fmt.Fprintf(b, "          <EQ name=\"ModifiedTime\" value=\"%s\"/>\n", escape(c.ModifiedTime))
	fmt.Fprintf(b, "          <LT name=\"Deviation.StartTime\" value=\"%s\"/>\n", escape(c.StartTime))
	b.WriteString("        </AND>\n")
	b.WriteString("      </OR>\n")
}

func isoZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func escape(s string) string {
	var b strings.Builder
	// EscapeText only fails on a failing writer; strings.Builder never does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
