package soap

import "encoding/xml"

// Service namespaces.
const (
	AuthNamespace        = "http://gamespy.net/AuthService"
	CompetitionNamespace = "http://gamespy.net/competition"
	ClanNamespace        = "http://gamespy.net"
)

// Result strings understood by the client.
const (
	ResultSuccess = "Success"
	ResultError   = "Error"
)

// Result codes carried inside competition results.
const (
	CodeSuccess = 0
	CodeError   = 1
)

// LoginRemoteAuthResponse answers LoginRemoteAuth.
type LoginRemoteAuthResponse struct {
	XMLName     xml.Name `xml:"http://gamespy.net/AuthService LoginRemoteAuthResponse"`
	Result      string   `xml:"LoginRemoteAuthResult"`
	Certificate string   `xml:"certificate,omitempty"`
	Expiry      string   `xml:"expiry,omitempty"`
}

// CompetitionResult is the body shared by the competition responses.
type CompetitionResult struct {
	Code    int    `xml:"result"`
	Message string `xml:"message"`
	CSID    string `xml:"csid,omitempty"`
	CCID    string `xml:"ccid,omitempty"`
}

type CreateSessionResponse struct {
	XMLName xml.Name          `xml:"http://gamespy.net/competition CreateSessionResponse"`
	Result  CompetitionResult `xml:"CreateSessionResult"`
}

type SetReportIntentionResponse struct {
	XMLName xml.Name          `xml:"http://gamespy.net/competition SetReportIntentionResponse"`
	Result  CompetitionResult `xml:"SetReportIntentionResult"`
}

type SubmitReportResponse struct {
	XMLName xml.Name          `xml:"http://gamespy.net/competition SubmitReportResponse"`
	Result  CompetitionResult `xml:"SubmitReportResult"`
}

// ClanInfo is the empty clan record returned for every profile.
type ClanInfo struct {
	XMLName  xml.Name `xml:"http://gamespy.net ClanInfo"`
	XSI      string   `xml:"xmlns:xsi,attr"`
	XSD      string   `xml:"xmlns:xsd,attr"`
	ClanID   int      `xml:"ClanID"`
	ClanName string   `xml:"ClanName"`
	ClanTag  string   `xml:"ClanTag"`
}

// LadderRatings carries the comma separated ratings for every ladder.
type LadderRatings struct {
	XMLName xml.Name `xml:"http://gamespy.net LadderRatings"`
	XSI     string   `xml:"xmlns:xsi,attr"`
	XSD     string   `xml:"xmlns:xsd,attr"`
	Ratings string   `xml:"Ratings"`
}

// DefaultLadderRatings is reported for every player.
const DefaultLadderRatings = "1500,1500,1500,1500"

func NewLoginRemoteAuthSuccess(certificate, expiry string) *LoginRemoteAuthResponse {
	return &LoginRemoteAuthResponse{
		Result:      ResultSuccess,
		Certificate: certificate,
		Expiry:      expiry,
	}
}

// NewLoginRemoteAuthResult returns a response carrying only a result string.
func NewLoginRemoteAuthResult(result string) *LoginRemoteAuthResponse {
	return &LoginRemoteAuthResponse{Result: result}
}

func NewCreateSessionSuccess(csid, ccid string) *CreateSessionResponse {
	return &CreateSessionResponse{Result: CompetitionResult{Code: CodeSuccess, CSID: csid, CCID: ccid}}
}

func NewSetReportIntentionSuccess(csid, ccid string) *SetReportIntentionResponse {
	return &SetReportIntentionResponse{Result: CompetitionResult{Code: CodeSuccess, CSID: csid, CCID: ccid}}
}

func NewSetReportIntentionError(message string) *SetReportIntentionResponse {
	return &SetReportIntentionResponse{Result: CompetitionResult{Code: CodeError, Message: message}}
}

func NewSubmitReportSuccess() *SubmitReportResponse {
	return &SubmitReportResponse{Result: CompetitionResult{Code: CodeSuccess}}
}

func NewSubmitReportError(message string) *SubmitReportResponse {
	return &SubmitReportResponse{Result: CompetitionResult{Code: CodeError, Message: message}}
}

func NewClanInfo() *ClanInfo {
	return &ClanInfo{XSI: XSINamespace, XSD: XSDNamespace}
}

func NewLadderRatings() *LadderRatings {
	return &LadderRatings{XSI: XSINamespace, XSD: XSDNamespace, Ratings: DefaultLadderRatings}
}
