package common

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecretsFromStdin(t *testing.T) {
	got, err := ReadSecrets(viper.New(), strings.NewReader("Secret-123\r\nSecret-123\n"),
		true, "password", "password_confirm")
	require.NoError(t, err)
	assert.Equal(t, []string{"Secret-123", "Secret-123"}, got)

	_, err = ReadSecrets(viper.New(), strings.NewReader("only-one\n"),
		true, "password", "password_confirm")
	assert.ErrorContains(t, err, "password_confirm")
}

func TestReadSecretsFromEnv(t *testing.T) {
	t.Setenv("PCC_PASSWORD", "from-env")
	v := viper.New()
	v.SetEnvPrefix("PCC")
	v.AutomaticEnv()

	got, err := ReadSecrets(v, strings.NewReader("ignored\n"), false, "password")
	require.NoError(t, err)
	assert.Equal(t, []string{"from-env"}, got)

	_, err = ReadSecrets(v, nil, false, "password_confirm")
	assert.ErrorContains(t, err, "PCC_PASSWORD_CONFIRM")
}
