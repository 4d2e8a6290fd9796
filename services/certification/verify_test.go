package certification

import (
	"context"
	"strings"
	"testing"
	"time"

	courseModels "lms/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueFor(t *testing.T, f *courseFixture, engine *Engine) *courseModels.Certificate {
	t.Helper()
	f.completeCourse(t)
	eval, err := engine.EvaluateCompletion(context.Background(), f.userID, courseModels.EnrollableCourse, f.course.ID)
	require.NoError(t, err)
	require.True(t, eval.Issued)
	return eval.Certificate
}

func TestVerifyRoundTrip(t *testing.T) {
	f := newCourseFixture(t)
	require.NoError(t, f.db.Model(&f.course).Update("final_quiz_id", nil).Error)
	engine := f.engine(nil)
	cert := issueFor(t, f, engine)
	ctx := context.Background()

	result, err := engine.Verify(ctx, cert.VerificationCode)
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, courseModels.CertificateActive, result.Status)
	assert.Equal(t, cert.CertificateNumber, result.CertificateNumber)
	assert.Equal(t, cert.RecipientName, result.RecipientName)
	require.NotNil(t, result.IssueDate)
	assert.True(t, cert.IssueDate.Equal(*result.IssueDate))
	assert.EqualValues(t, 1, result.VerifiedCount)

	typed := "  " + strings.ToLower(cert.VerificationCode[:13]) + "-" + strings.ToLower(cert.VerificationCode[13:]) + " "
	result, err = engine.Verify(ctx, typed)
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.EqualValues(t, 2, result.VerifiedCount)

	var stored courseModels.Certificate
	require.NoError(t, f.db.First(&stored, cert.ID).Error)
	assert.EqualValues(t, 2, stored.VerifiedCount)
	assert.NotNil(t, stored.LastVerifiedAt)
}

func TestVerifyUnknownCode(t *testing.T) {
	f := newCourseFixture(t)
	engine := f.engine(nil)

	result, err := engine.Verify(context.Background(), "NOSUCHCODE")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Empty(t, result.CertificateNumber)

	result, err = engine.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestVerifyDerivesExpiryAtQueryTime(t *testing.T) {
	f := newCourseFixture(t)
	require.NoError(t, f.db.Model(&f.course).Update("final_quiz_id", nil).Error)
	engine := f.engine(nil)
	cert := issueFor(t, f, engine)

	f.clock.Set(cert.ExpiryDate.Add(-time.Second))
	result, err := engine.Verify(context.Background(), cert.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, courseModels.CertificateActive, result.Status)

	f.clock.Set(cert.ExpiryDate.Add(time.Hour))
	result, err = engine.Verify(context.Background(), cert.VerificationCode)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, courseModels.CertificateExpired, result.Status)

	var stored courseModels.Certificate
	require.NoError(t, f.db.First(&stored, cert.ID).Error)
	assert.Equal(t, courseModels.CertificateActive, stored.Status, "verify does not rely on the expiry job")

	_, err = engine.Revoke(context.Background(), cert.ID, "policy breach")
	require.NoError(t, err)
	result, err = engine.Verify(context.Background(), cert.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, courseModels.CertificateRevoked, result.Status)
	assert.Equal(t, "policy breach", result.RevokedReason)
}

func TestExpireDueAndListForUser(t *testing.T) {
	f := newCourseFixture(t)
	require.NoError(t, f.db.Model(&f.course).Update("final_quiz_id", nil).Error)
	engine := f.engine(nil)
	cert := issueFor(t, f, engine)
	ctx := context.Background()

	n, err := engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(cert.ExpiryDate.Add(24 * time.Hour))
	certs, err := engine.ListForUser(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, courseModels.CertificateExpired, certs[0].Status)

	n, err = engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var stored courseModels.Certificate
	require.NoError(t, f.db.First(&stored, cert.ID).Error)
	assert.Equal(t, courseModels.CertificateExpired, stored.Status)
}

func TestStatusAt(t *testing.T) {
	expiry := t0.Add(time.Hour)
	revokedAt := t0

	cases := []struct {
		name string
		cert courseModels.Certificate
		at   time.Time
		want string
	}{
		{"no expiry", courseModels.Certificate{Status: courseModels.CertificateActive}, t0, courseModels.CertificateActive},
		{"before expiry", courseModels.Certificate{Status: courseModels.CertificateActive, ExpiryDate: &expiry}, t0, courseModels.CertificateActive},
		{"at expiry", courseModels.Certificate{Status: courseModels.CertificateActive, ExpiryDate: &expiry}, expiry, courseModels.CertificateExpired},
		{"revoked wins", courseModels.Certificate{Status: courseModels.CertificateRevoked, RevokedAt: &revokedAt, ExpiryDate: &expiry}, expiry.Add(time.Hour), courseModels.CertificateRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusAt(&tc.cert, tc.at))
		})
	}
}
