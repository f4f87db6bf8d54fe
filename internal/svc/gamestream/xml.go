// If you are AI: This file shapes the XML responses of the gamestream protocol.
// Every body is a <root> element carrying status_code and optional status_message.

package gamestream

import (
	"encoding/xml"
	"net/http"

	"go.uber.org/zap"
)

// Root is the generic gamestream response envelope.
type Root struct {
	XMLName       xml.Name `xml:"root"`
	StatusCode    int      `xml:"status_code,attr"`
	StatusMessage string   `xml:"status_message,attr,omitempty"`
	Query         string   `xml:"query,attr,omitempty"`

	Paired            *int   `xml:"paired,omitempty"`
	PlainCert         string `xml:"plaincert,omitempty"`
	ChallengeResponse string `xml:"challengeresponse,omitempty"`
	PairingSecret     string `xml:"pairingsecret,omitempty"`

	Hostname              string   `xml:"hostname,omitempty"`
	AppVersion            string   `xml:"appversion,omitempty"`
	GfeVersion            string   `xml:"GfeVersion,omitempty"`
	UniqueID              string   `xml:"uniqueid,omitempty"`
	HTTPSPort             *int     `xml:"HttpsPort,omitempty"`
	ExternalPort          *int     `xml:"ExternalPort,omitempty"`
	MaxLumaPixelsHEVC     string   `xml:"MaxLumaPixelsHEVC,omitempty"`
	MAC                   string   `xml:"mac,omitempty"`
	Permission            string   `xml:"Permission,omitempty"`
	ServerCommands        []string `xml:"ServerCommand,omitempty"`
	VirtualDisplayCapable *bool    `xml:"VirtualDisplayCapable,omitempty"`
	VirtualDisplayReady   *bool    `xml:"VirtualDisplayDriverReady,omitempty"`
	LocalIP               string   `xml:"LocalIP,omitempty"`
	CodecModeSupport      *uint32  `xml:"ServerCodecModeSupport,omitempty"`
	PairStatus            *int     `xml:"PairStatus,omitempty"`
	CurrentGame           *int     `xml:"currentgame,omitempty"`
	CurrentGameUUID       *string  `xml:"currentgameuuid,omitempty"`
	State                 string   `xml:"state,omitempty"`

	GameSession *int   `xml:"gamesession,omitempty"`
	Resume      *int   `xml:"resume,omitempty"`
	Cancel      *int   `xml:"cancel,omitempty"`
	SessionURL0 string `xml:"sessionUrl0,omitempty"`

	Apps []AppEntry `xml:"App,omitempty"`
}

// AppEntry is one <App> element in an applist response.
type AppEntry struct {
	IsHdrSupported int    `xml:"IsHdrSupported"`
	AppTitle       string `xml:"AppTitle"`
	UUID           string `xml:"UUID"`
	IDX            int    `xml:"IDX"`
	ID             string `xml:"ID"`
}

// intp builds an optional int element.
func intp(v int) *int { return &v }

// boolp builds an optional bool element.
func boolp(v bool) *bool { return &v }

// u32p builds an optional uint32 element.
func u32p(v uint32) *uint32 { return &v }

// strp builds an optional string element.
func strp(v string) *string { return &v }

// writeXML serialises a response envelope. The HTTP status stays 200 for
// protocol-level failures; clients read status_code out of the body.
func (s *Service) writeXML(w http.ResponseWriter, httpStatus int, body *Root) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(httpStatus)
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("couldn't encode response", zap.Error(err))
	}
}

// writeError emits a failure envelope with the same code on both layers.
func (s *Service) writeError(w http.ResponseWriter, code int, message string) {
	s.writeXML(w, code, &Root{StatusCode: code, StatusMessage: message})
}

// pairEnvelope converts a pairing engine result to its wire shape.
func pairEnvelope(status int, message string, paired int, plainCert, challengeResponse, pairingSecret string) *Root {
	return &Root{
		StatusCode:        status,
		StatusMessage:     message,
		Paired:            intp(paired),
		PlainCert:         plainCert,
		ChallengeResponse: challengeResponse,
		PairingSecret:     pairingSecret,
	}
}
