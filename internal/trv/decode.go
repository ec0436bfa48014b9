package trv

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/vagdata/trafik-etl/internal/domain"
)

// The upstream API has shipped two response families for the same query: an
// XML body (data.xml endpoint) and a JSON body (data.json endpoint), with
// small shape differences inside the Deviation object. One adapter per shape
// converges on domain.RawSituation so the normalizer never sees wire formats.

// --- XML shape ---

type xmlResponse struct {
	XMLName xml.Name    `xml:"RESPONSE"`
	Results []xmlResult `xml:"RESULT"`
}

type xmlResult struct {
	Situations []xmlSituation `xml:"Situation"`
	Error      *xmlError      `xml:"ERROR"`
}

type xmlError struct {
	Message string `xml:"MESSAGE"`
	Source  string `xml:"SOURCE"`
}

type xmlSituation struct {
	ID              string         `xml:"Id"`
	ModifiedTime    string         `xml:"ModifiedTime"`
	PublicationTime string         `xml:"PublicationTime"`
	Deviations      []xmlDeviation `xml:"Deviation"`
}

type xmlDeviation struct {
	ID                 string   `xml:"Id"`
	Message            string   `xml:"Message"`
	MessageType        string   `xml:"MessageType"`
	LocationDescriptor string   `xml:"LocationDescriptor"`
	RoadNumber         string   `xml:"RoadNumber"`
	CountyNo           []string `xml:"CountyNo"`
	StartTime          string   `xml:"StartTime"`
	EndTime            string   `xml:"EndTime"`
	Status             string   `xml:"Status"`
	Geometry           struct {
		WGS84 string `xml:"WGS84"`
	} `xml:"Geometry"`
}

// DecodeXML parses an XML response body into raw situations. A body that is
// not a RESPONSE document at all, or that carries an upstream ERROR element,
// is a structural error that fails the page.
func DecodeXML(body []byte) ([]domain.RawSituation, error) {
	var resp xmlResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode xml response: %w", err)
	}

	var out []domain.RawSituation
	for _, res := range resp.Results {
		if res.Error != nil {
			return nil, fmt.Errorf("upstream error: %s (%s)", res.Error.Message, res.Error.Source)
		}
		for _, sit := range res.Situations {
			out = append(out, xmlToRaw(sit))
		}
	}
	return out, nil
}

func xmlToRaw(sit xmlSituation) domain.RawSituation {
	raw := domain.RawSituation{
		ID:              sit.ID,
		ModifiedTime:    sit.ModifiedTime,
		PublicationTime: sit.PublicationTime,
		Deviations:      make([]domain.RawDeviation, 0, len(sit.Deviations)),
	}
	for _, d := range sit.Deviations {
		raw.Deviations = append(raw.Deviations, domain.RawDeviation{
			ID:                 d.ID,
			Message:            d.Message,
			MessageType:        d.MessageType,
			LocationDescriptor: d.LocationDescriptor,
			RoadNumber:         d.RoadNumber,
			CountyNo:           firstCounty(d.CountyNo),
			StartTime:          d.StartTime,
			EndTime:            d.EndTime,
			Geometry:           d.Geometry.WGS84,
			Status:             d.Status,
		})
	}
	return raw
}

// firstCounty takes the first parsable county number; deviations spanning
// several counties are attributed to the first one, matching the upstream's
// own dashboard behavior.
func firstCounty(values []string) *int {
	for _, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

// --- JSON shape ---

type jsonResponse struct {
	Response struct {
		Result []jsonResult `json:"RESULT"`
	} `json:"RESPONSE"`
}

type jsonResult struct {
	Situations []jsonSituation `json:"Situation"`
}

type jsonSituation struct {
	ID              string          `json:"Id"`
	ModifiedTime    string          `json:"ModifiedTime"`
	PublicationTime string          `json:"PublicationTime"`
	Deviations      []jsonDeviation `json:"Deviation"`
}

type jsonDeviation struct {
	ID                 string          `json:"Id"`
	Message            string          `json:"Message"`
	MessageType        string          `json:"MessageType"`
	LocationDescriptor string          `json:"LocationDescriptor"`
	RoadNumber         string          `json:"RoadNumber"`
	CountyNo           json.RawMessage `json:"CountyNo"` // scalar in schema 1, array in later variants
	StartTime          string          `json:"StartTime"`
	EndTime            string          `json:"EndTime"`
	Status             string          `json:"Status"`
	Geometry           json.RawMessage `json:"Geometry"` // object {"WGS84": ...} or bare string
}

// DecodeJSON parses a JSON response body into raw situations. The decoder
// tolerates the two known in-family variants: CountyNo as a number or an
// array of numbers, and Geometry as a {"WGS84": ...} object or a bare string.
func DecodeJSON(body []byte) ([]domain.RawSituation, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var resp jsonResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode json response: %w", err)
	}

	var out []domain.RawSituation
	for _, res := range resp.Response.Result {
		for _, sit := range res.Situations {
			out = append(out, jsonToRaw(sit))
		}
	}
	return out, nil
}

func jsonToRaw(sit jsonSituation) domain.RawSituation {
	raw := domain.RawSituation{
		ID:              sit.ID,
		ModifiedTime:    sit.ModifiedTime,
		PublicationTime: sit.PublicationTime,
		Deviations:      make([]domain.RawDeviation, 0, len(sit.Deviations)),
	}
	for _, d := range sit.Deviations {
		raw.Deviations = append(raw.Deviations, domain.RawDeviation{
			ID:                 d.ID,
			Message:            d.Message,
			MessageType:        d.MessageType,
			LocationDescriptor: d.LocationDescriptor,
			RoadNumber:         d.RoadNumber,
			CountyNo:           jsonCounty(d.CountyNo),
			StartTime:          d.StartTime,
			EndTime:            d.EndTime,
			Geometry:           jsonGeometry(d.Geometry),
			Status:             d.Status,
		})
	}
	return raw
}

func jsonCounty(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var scalar int
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return &scalar
	}
	var list []int
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return &list[0]
	}
	return nil
}

func jsonGeometry(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		WGS84 string `json:"WGS84"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.WGS84 != "" {
		return obj.WGS84
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
