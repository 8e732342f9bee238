package scanner

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"residence-backend/internal/accesslog"
	"residence-backend/internal/credential"
	"residence-backend/internal/events"
	"residence-backend/internal/guest"
	"residence-backend/internal/models"
	"residence-backend/internal/resident"
	"residence-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	codec     *credential.Codec
	residents *resident.Service
	guests    *guest.Service
	logs      *accesslog.Service
	events    *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.New(store.NewMemoryBackend(), zap.NewNop())
	codec := credential.NewCodec(credential.DefaultValidity, credential.WithClock(func() time.Time { return fixedNow }))
	rec := &events.Recorder{}
	residents := resident.NewService(s, codec, nil, zap.NewNop())
	logs := accesslog.NewService(s, rec, time.UTC, zap.NewNop())
	guests := guest.NewService(s, codec, residents, logs, 24*time.Hour, zap.NewNop())
	return &fixture{
		svc:       NewService(codec, residents, guests, logs, zap.NewNop()),
		codec:     codec,
		residents: residents,
		guests:    guests,
		logs:      logs,
		events:    rec,
	}
}

func (f *fixture) addResident(t *testing.T, active bool) *models.Resident {
	t.Helper()
	r, err := f.residents.Create(context.Background(), resident.Input{
		FirstName: "John", LastName: "Smith", UnitNumber: "A-101", Building: "Building A", IsActive: &active,
	}, models.User{ID: "u1"})
	require.NoError(t, err)
	return r
}

func (f *fixture) credentialText(t *testing.T, r *models.Resident) string {
	t.Helper()
	text, err := f.codec.Encode(f.codec.Issue(r))
	require.NoError(t, err)
	return text
}

func TestProcess_Granted(t *testing.T) {
	f := newFixture(t)
	r := f.addResident(t, true)

	res, err := f.svc.Process(context.Background(), f.credentialText(t, r), Request{SecurityPersonnel: "Security Officer"})
	require.NoError(t, err)
	require.Equal(t, StatusGranted, res.Status)
	assert.Equal(t, r.ID, res.Resident.ID)
	require.NotNil(t, res.Log)
	assert.Equal(t, models.AccessEntry, res.Log.AccessType)
	assert.Equal(t, models.AccessMethodQRCode, res.Log.Method)
	assert.Equal(t, accesslog.DefaultLocation, res.Log.Location)
	assert.Equal(t, "John Smith", res.Log.ResidentName)

	logs, err := f.logs.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Len(t, f.events.Events(), 1)
}

func TestProcess_Denied(t *testing.T) {
	f := newFixture(t)
	active := f.addResident(t, true)
	inactive := f.addResident(t, false)

	past := fixedNow.Add(-time.Hour)
	expired, err := f.codec.Encode(models.CredentialPayload{
		ResidentID: active.ID, UnitNumber: active.UnitNumber, IssuedAt: fixedNow.Add(-31 * 24 * time.Hour), ValidUntil: &past,
	})
	require.NoError(t, err)

	unknown, err := f.codec.Encode(f.codec.Issue(&models.Resident{ID: "nobody", UnitNumber: "Z-1"}))
	require.NoError(t, err)

	cases := []struct {
		name string
		text string
		msg  string
	}{
		{"garbage", "hello", MsgInvalidCredential},
		{"missing unit", `{"residentId":"x","issuedAt":"2025-03-10T09:00:00Z"}`, MsgInvalidCredential},
		{"expired", expired, MsgInvalidCredential},
		{"unknown resident", unknown, MsgResidentNotFound},
		{"inactive", f.credentialText(t, inactive), MsgResidentInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.Process(context.Background(), tc.text, Request{})
			require.NoError(t, err)
			assert.Equal(t, StatusDenied, res.Status)
			assert.Equal(t, tc.msg, res.Message)
			assert.Nil(t, res.Log)
		})
	}

	logs, err := f.logs.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestProcess_InvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), "  ", Request{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Process(context.Background(), "{}", Request{AccessType: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessImage(t *testing.T) {
	f := newFixture(t)
	r := f.addResident(t, true)

	png, err := credential.DecodeDataURI(r.QRCode)
	require.NoError(t, err)

	res, err := f.svc.ProcessImage(context.Background(), bytes.NewReader(png), Request{AccessType: models.AccessExit})
	require.NoError(t, err)
	require.Equal(t, StatusGranted, res.Status)
	assert.Equal(t, models.AccessExit, res.Log.AccessType)

	res, err = f.svc.ProcessImage(context.Background(), strings.NewReader("not an image"), Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, MsgNoCode, res.Message)
}

func TestRecordManual(t *testing.T) {
	f := newFixture(t)
	r := f.addResident(t, true)

	res, err := f.svc.RecordManual(context.Background(), r.ID, Request{AccessType: models.AccessExit, Notes: "Forgot card"})
	require.NoError(t, err)
	require.Equal(t, StatusGranted, res.Status)
	assert.Equal(t, models.AccessMethodManual, res.Log.Method)
	assert.Equal(t, "Forgot card", res.Log.Notes)

	res, err = f.svc.RecordManual(context.Background(), "missing", Request{})
	require.NoError(t, err)
	assert.Equal(t, MsgResidentNotFound, res.Message)

	_, err = f.svc.RecordManual(context.Background(), "", Request{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcess_GuestPassMovesGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := f.addResident(t, true)

	g, err := f.guests.Create(ctx, guest.CreateInput{Name: "Tom Baker", HostResidentID: host.ID})
	require.NoError(t, err)
	require.NotEmpty(t, g.QRCode)
	png, err := credential.DecodeDataURI(g.QRCode)
	require.NoError(t, err)
	text, err := credential.DecodeImageBytes(png)
	require.NoError(t, err)

	res, err := f.svc.Process(ctx, text, Request{})
	require.NoError(t, err)
	require.Equal(t, StatusGranted, res.Status, res.Message)
	require.NotNil(t, res.Guest)
	assert.Equal(t, models.GuestArrived, res.Guest.Status)
	require.NotNil(t, res.Log)
	assert.Equal(t, models.AccessMethodGuest, res.Log.Method)
	assert.Equal(t, host.ID, res.Log.ResidentID)

	res, err = f.svc.Process(ctx, text, Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, MsgGuestWrongState, res.Message)

	res, err = f.svc.Process(ctx, text, Request{AccessType: models.AccessExit})
	require.NoError(t, err)
	require.Equal(t, StatusGranted, res.Status)
	assert.Equal(t, models.GuestDeparted, res.Guest.Status)

	res, err = f.svc.Process(ctx, `{"guestId":"nobody","hostResidentId":"`+host.ID+`"}`, Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, MsgGuestNotFound, res.Message)

	res, err = f.svc.Process(ctx, `{"guestId":"nobody"}`, Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, MsgInvalidCredential, res.Message)
}
