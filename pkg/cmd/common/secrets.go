package common

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// ReadSecrets returns one value per key. With fromStdin the values are
// read line by line from r. Otherwise they are taken from v, that is the
// config file or the PCC_<KEY> environment variable.
//
//nolint:whitespace // editor/linter issue
func ReadSecrets(
	v *viper.Viper,
	r io.Reader,
	fromStdin bool,
	keys ...string,
) ([]string, error) {
	ret := make([]string, 0, len(keys))
	if !fromStdin {
		for _, key := range keys {
			val := v.GetString(key)
			if val == "" {
				return nil, fmt.Errorf("%s not set (use --password-stdin or PCC_%s)",
					key, strings.ToUpper(key))
			}
			ret = append(ret, val)
		}
		return ret, nil
	}
	scanner := bufio.NewScanner(r)
	for _, key := range keys {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%s: no input on stdin", key)
		}
		ret = append(ret, strings.TrimRight(scanner.Text(), "\r"))
	}
	return ret, nil
}
