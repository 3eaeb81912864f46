package http

import "encoding/xml"

// twiml is the reply envelope the delivery provider expects on webhook
// responses. An empty Response means "no outbound message".
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func renderTwiML(message string) string {
	body, err := xml.Marshal(twiml{Message: message})
	if err != nil {
		// the struct cannot fail to marshal; keep the channel alive anyway
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(body)
}
