package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktaba-app/maktaba/internal/domain"
)

const testBotToken = "12345:test-bot-token"

// signInitData builds a correctly signed init data string the way the
// Telegram client would.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))
	mac := hmac.New(sha256.New, keyMAC.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validFields(authDate time.Time) map[string]string {
	return map[string]string{
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"query_id":  "AAF9tQEAAAAAAH21AQ",
		"user":      `{"id":777000,"first_name":"Aisha","username":"aisha_reads","language_code":"ar"}`,
	}
}

func TestValidateAcceptsSignedData(t *testing.T) {
	v := NewValidator(testBotToken, 0)
	initData := signInitData(t, testBotToken, validFields(time.Now()))

	profile, err := v.Validate(initData)
	require.NoError(t, err)
	assert.Equal(t, int64(777000), profile.TelegramID)
	assert.Equal(t, "aisha_reads", profile.Username)
	assert.Equal(t, "Aisha", profile.FirstName)
	assert.Equal(t, "ar", profile.LanguageCode)
}

func TestValidateRejectsTamperedData(t *testing.T) {
	v := NewValidator(testBotToken, 0)
	fields := validFields(time.Now())
	initData := signInitData(t, testBotToken, fields)

	tampered := strings.Replace(initData, "777000", "111111", 1)
	_, err := v.Validate(tampered)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestValidateRejectsWrongBotToken(t *testing.T) {
	v := NewValidator(testBotToken, 0)
	initData := signInitData(t, "99999:other-bot", validFields(time.Now()))

	_, err := v.Validate(initData)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestValidateRejectsMissingHash(t *testing.T) {
	v := NewValidator(testBotToken, 0)

	_, err := v.Validate("auth_date=123&user=%7B%22id%22%3A1%7D")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestValidateRejectsStaleAuthDate(t *testing.T) {
	v := NewValidator(testBotToken, time.Hour)
	initData := signInitData(t, testBotToken, validFields(time.Now().Add(-2*time.Hour)))

	_, err := v.Validate(initData)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestValidateRejectsMissingUser(t *testing.T) {
	v := NewValidator(testBotToken, 0)
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
	}
	initData := signInitData(t, testBotToken, fields)

	_, err := v.Validate(initData)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}
