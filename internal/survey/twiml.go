package survey

import (
	"bytes"
	"encoding/xml"

	"github.com/rotisserie/eris"
)

// Minimal TwiML rendering for the survey call flow. Only the verbs the
// flow needs; no provider SDK dependency.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr"`
	Method    string   `xml:"method,attr"`
	MaxLength int      `xml:"maxLength,attr"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// renderSurveyTwiML builds the survey call script: play (or speak) the
// prompt, record the answer, hang up. audioURL takes precedence over
// sayText when both are set.
func renderSurveyTwiML(audioURL, sayText, callbackURL string) (string, error) {
	if callbackURL == "" {
		return "", eris.New("survey: callback URL required")
	}

	var r twimlResponse
	if audioURL != "" {
		r.Verbs = append(r.Verbs, twimlPlay{URL: audioURL})
	} else {
		r.Verbs = append(r.Verbs, twimlSay{Voice: "alice", Text: sayText})
	}
	r.Verbs = append(r.Verbs, twimlRecord{
		Action:    callbackURL,
		Method:    "POST",
		MaxLength: 120,
		PlayBeep:  true,
	})
	r.Verbs = append(r.Verbs, twimlHangup{})

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", eris.Wrap(err, "survey: encode twiml")
	}
	if err := enc.Flush(); err != nil {
		return "", eris.Wrap(err, "survey: flush twiml")
	}
	return buf.String(), nil
}
