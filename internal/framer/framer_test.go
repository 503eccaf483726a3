package framer

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/matchgate/internal/soap"
)

var rawReport = []byte{0x01, 0x00, 0x00, 0x00, 0x3c, 0x00, 0xff, 0x00, 0x1f, 0x8b, 'x'}

func submitReportBody(payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/" xmlns:gsc="http://gamespy.net/competition/">`)
	b.WriteString(`<SOAP-ENV:Body><gsc:SubmitReport><gsc:certificate><gsc:length>303</gsc:length>`)
	b.WriteString(`<gsc:profileid>42</gsc:profileid></gsc:certificate>`)
	b.WriteString(`<gsc:csid>ABC123</gsc:csid><gsc:ccid>7</gsc:ccid>`)
	b.WriteString(`<gsc:report>`)
	b.Write(BinaryMarker)
	b.Write(payload)
	return b.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func TestFrameBinarySubmitReport(t *testing.T) {
	f := New(0)

	req, err := f.Frame(`"http://gamespy.net/competition/SubmitReport"`, submitReportBody(rawReport))
	require.NoError(t, err)

	assert.Equal(t, OpSubmitReport, req.Action)
	assert.Equal(t, "ABC123", req.CSID)
	assert.Equal(t, "7", req.CCID)
	assert.Equal(t, 42, req.ProfileID)
	assert.Equal(t, rawReport, req.Report)
	assert.True(t, req.Binary)
	assert.False(t, req.Compressed)
	assert.Nil(t, req.Operation)
	assert.Equal(t, OpSubmitReport, req.OperationName())
}

func TestFrameGzipMatchesPlain(t *testing.T) {
	f := New(0)
	body := submitReportBody(rawReport)

	plain, err := f.Frame("SubmitReport", body)
	require.NoError(t, err)
	compressed, err := f.Frame("SubmitReport", gzipBytes(t, body))
	require.NoError(t, err)

	assert.True(t, compressed.Compressed)
	compressed.Compressed = false
	assert.Equal(t, plain, compressed)
}

func TestFrameMissingMarkersAreTolerated(t *testing.T) {
	f := New(0)

	req, err := f.Frame("SubmitReport", []byte("garbage without any tags \xff\xfe"))
	require.NoError(t, err)
	assert.Empty(t, req.CSID)
	assert.Empty(t, req.CCID)
	assert.Zero(t, req.ProfileID)
	assert.Empty(t, req.Report)
	assert.False(t, req.Binary)

	req, err = f.Frame("SubmitReport", []byte("<csid>only</csid>application/bin\x00"))
	require.NoError(t, err)
	assert.Equal(t, "only", req.CSID)
	assert.Empty(t, req.CCID)
	assert.Empty(t, req.Report)
	assert.True(t, req.Binary)
}

func TestFrameIgnoresTagsInsidePayload(t *testing.T) {
	f := New(0)
	payload := []byte("<csid>FAKE</csid>")

	body := append([]byte("<ccid>3</ccid>"), BinaryMarker...)
	body = append(body, payload...)

	req, err := f.Frame("SubmitReport", body)
	require.NoError(t, err)
	assert.Empty(t, req.CSID)
	assert.Equal(t, "3", req.CCID)
	assert.Equal(t, payload, req.Report)
}

func TestFrameMarkerWithoutHeader(t *testing.T) {
	f := New(0)

	req, err := f.Frame("", submitReportBody(rawReport))
	require.NoError(t, err)
	assert.Equal(t, OpSubmitReport, req.Action)
	assert.Equal(t, "ABC123", req.CSID)
	assert.Equal(t, rawReport, req.Report)
}

func TestFrameBase64Report(t *testing.T) {
	f := New(0)
	body := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
		<SubmitReport xmlns="http://gamespy.net/competition">
			<csid>S1</csid><ccid>2</ccid><profileId>9</profileId>
			<report>` + base64.StdEncoding.EncodeToString(rawReport) + `</report>
		</SubmitReport></soap:Body></soap:Envelope>`

	req, err := f.Frame("SubmitReport", []byte(body))
	require.NoError(t, err)
	assert.False(t, req.Binary)
	assert.Equal(t, "S1", req.CSID)
	assert.Equal(t, "2", req.CCID)
	assert.Equal(t, 9, req.ProfileID)
	assert.Equal(t, rawReport, req.Report)
	assert.Equal(t, "SubmitReport", req.OperationName())
}

func TestFrameBase64ReportWithoutHeader(t *testing.T) {
	f := New(0)
	body := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
		<gsc:SubmitReport xmlns:gsc="http://gamespy.net/competition">
			<gsc:csid>S2</gsc:csid><gsc:ccid>5</gsc:ccid><gsc:profileId>9</gsc:profileId>
			<gsc:report>` + base64.StdEncoding.EncodeToString(rawReport) + `</gsc:report>
		</gsc:SubmitReport></soap:Body></soap:Envelope>`

	for _, action := range []string{"", "urn:unrelated"} {
		req, err := f.Frame(action, []byte(body))
		require.NoError(t, err)
		assert.Equal(t, OpSubmitReport, req.Action)
		assert.Equal(t, "S2", req.CSID)
		assert.Equal(t, "5", req.CCID)
		assert.Equal(t, 9, req.ProfileID)
		assert.Equal(t, rawReport, req.Report)
	}
}

func TestFrameXMLOperation(t *testing.T) {
	f := New(0)
	body := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
		<ns1:SetReportIntention xmlns:ns1="http://gamespy.net/competition">
			<ns1:csid>X</ns1:csid><ns1:ccid>4</ns1:ccid>
			<ns1:certificate><ns1:profileid>11</ns1:profileid></ns1:certificate>
		</ns1:SetReportIntention></soap:Body></soap:Envelope>`

	req, err := f.Frame(`"SetReportIntention"`, gzipBytes(t, []byte(body)))
	require.NoError(t, err)
	assert.True(t, req.Compressed)
	assert.Equal(t, OpSetReportIntention, req.Action)
	assert.Equal(t, "SetReportIntention", req.OperationName())
	assert.Equal(t, "X", req.CSID)
	assert.Equal(t, "4", req.CCID)
	assert.Equal(t, 11, req.ProfileID)
}

func TestFrameErrors(t *testing.T) {
	f := New(64)

	_, err := f.Frame("CreateSession", []byte{0x1f, 0x8b, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrFraming)

	_, err = f.Frame("CreateSession", gzipBytes(t, bytes.Repeat([]byte("a"), 1000)))
	assert.ErrorIs(t, err, ErrFraming)

	_, err = f.Frame("CreateSession", []byte("<Envelope>\xff</Envelope>"))
	assert.ErrorIs(t, err, soap.ErrMalformedXML)

	_, err = f.Frame("CreateSession", []byte("<Envelope><Body>"))
	assert.ErrorIs(t, err, soap.ErrMalformedXML)
}

func TestResolveAction(t *testing.T) {
	assert.Equal(t, OpLoginRemoteAuth, ResolveAction(`"http://gamespy.net/AuthService/LoginRemoteAuth"`))
	assert.Equal(t, OpCreateSession, ResolveAction("createsession"))
	assert.Equal(t, OpSubmitReport, ResolveAction("'SUBMITREPORT'"))
	assert.Equal(t, "", ResolveAction(""))
	assert.Equal(t, "", ResolveAction("Unknown"))

	assert.True(t, MatchAction("urn:SetReportIntention", OpSetReportIntention))
	assert.False(t, MatchAction(`""`, OpSetReportIntention))
}
