package soap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginRequest = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:ns1="http://gamespy.net/AuthService">
  <soap:Header/>
  <soap:Body>
    <ns1:LoginRemoteAuth>
      <ns1:ServerData>abc</ns1:ServerData>
      <ns1:profileId> 42 </ns1:profileId>
    </ns1:LoginRemoteAuth>
  </soap:Body>
</soap:Envelope>`

func TestExtractOperation(t *testing.T) {
	op, err := ExtractOperation(loginRequest)
	require.NoError(t, err)

	assert.Equal(t, "LoginRemoteAuth", OperationName(op))
	assert.Equal(t, "abc", ElementText(op, "ServerData"))
	assert.Equal(t, 42, ElementInt(op, "profileId"))
	assert.Equal(t, "", ElementText(op, "missing"))
	assert.Nil(t, ChildElement(op, "missing"))
}

func TestExtractOperationMalformed(t *testing.T) {
	cases := map[string]string{
		"not xml":     "hello world",
		"empty":       "",
		"no envelope": `<Body><Op/></Body>`,
		"no body":     `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Header/></soap:Envelope>`,
		"empty body":  `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body></soap:Body></soap:Envelope>`,
		"unclosed":    `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><Op>`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractOperation(input)
			assert.ErrorIs(t, err, ErrMalformedXML)
		})
	}
}

func TestElementLookupIgnoresNamespace(t *testing.T) {
	doc := `<Envelope><Body><SubmitReport xmlns="http://gamespy.net/competition">
		<a:csid xmlns:a="urn:x">one</a:csid><csid>two</csid></SubmitReport></Body></Envelope>`

	op, err := ExtractOperation(doc)
	require.NoError(t, err)
	assert.Equal(t, "one", ElementText(op, "csid"))
}

func TestElementLookupIsDepthFirst(t *testing.T) {
	doc := `<Envelope><Body><Op>
		<outer><value>nested</value></outer>
		<value>sibling</value>
	</Op></Body></Envelope>`

	op, err := ExtractOperation(doc)
	require.NoError(t, err)
	assert.Equal(t, "nested", ElementText(op, "value"))
}

func TestElementLookupIsCaseSensitive(t *testing.T) {
	op, err := ExtractOperation(`<Envelope><Body><Op><ProfileID>5</ProfileID></Op></Body></Envelope>`)
	require.NoError(t, err)
	assert.Equal(t, 0, ElementInt(op, "profileId"))
}

func TestElementIntNonNumeric(t *testing.T) {
	op, err := ExtractOperation(`<Envelope><Body><Op><profileId>abc</profileId></Op></Body></Envelope>`)
	require.NoError(t, err)
	assert.Equal(t, 0, ElementInt(op, "profileId"))
}

func TestProfileIDFallsBackToCertificate(t *testing.T) {
	op, err := ExtractOperation(`<Envelope><Body><CreateSession>
		<certificate><length>10</length><profileid>77</profileid></certificate>
	</CreateSession></Body></Envelope>`)
	require.NoError(t, err)
	assert.Equal(t, 77, ProfileID(op))

	op, err = ExtractOperation(`<Envelope><Body><CreateSession>
		<profileId>5</profileId><certificate><profileid>77</profileid></certificate>
	</CreateSession></Body></Envelope>`)
	require.NoError(t, err)
	assert.Equal(t, 5, ProfileID(op))
}

func TestWrapResponseRoundTrip(t *testing.T) {
	models := []any{
		NewLoginRemoteAuthSuccess("cert", "2024-01-01T00:03:00Z"),
		NewCreateSessionSuccess("csid-1", "1"),
		NewSetReportIntentionError("unknown session"),
		NewSubmitReportSuccess(),
	}
	names := []string{
		"LoginRemoteAuthResponse",
		"CreateSessionResponse",
		"SetReportIntentionResponse",
		"SubmitReportResponse",
	}

	for i, model := range models {
		out, err := WrapResponse(model)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, XMLDeclaration))

		op, err := ExtractOperation(out)
		require.NoError(t, err)
		assert.Equal(t, names[i], OperationName(op))
	}
}

func TestWrapResponseFields(t *testing.T) {
	out, err := WrapResponse(NewCreateSessionSuccess("abc", "9"))
	require.NoError(t, err)

	op, err := ExtractOperation(out)
	require.NoError(t, err)
	assert.Equal(t, "0", ElementText(op, "result"))
	assert.Equal(t, "abc", ElementText(op, "csid"))
	assert.Equal(t, "9", ElementText(op, "ccid"))
	assert.Contains(t, out, `xmlns="http://gamespy.net/competition"`)
}

func TestBuildFault(t *testing.T) {
	out := BuildFault(`bad <input> & "quotes"`)

	op, err := ExtractOperation(out)
	require.NoError(t, err)
	assert.Equal(t, "Fault", OperationName(op))
	assert.Equal(t, "soap:Server", ElementText(op, "faultcode"))
	assert.Equal(t, `bad <input> & "quotes"`, ElementText(op, "faultstring"))
}

func TestMarshalDocument(t *testing.T) {
	out, err := MarshalDocument(NewLadderRatings())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, XMLDeclaration+"<LadderRatings"))
	assert.Contains(t, out, "<Ratings>1500,1500,1500,1500</Ratings>")
	assert.NotContains(t, out, "Envelope")

	out, err = MarshalDocument(NewClanInfo())
	require.NoError(t, err)
	assert.Contains(t, out, "<ClanID>0</ClanID>")
	assert.Contains(t, out, `xmlns:xsi="`+XSINamespace+`"`)
}
