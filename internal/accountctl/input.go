package accountctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

var errPasswordMismatch = errors.New("passwords didn't match")

// promptText prints prompt to w and reads one trimmed line. A final line
// without a newline is accepted.
func promptText(reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", prompt); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads the password twice without echo.
func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	fmt.Fprint(w, "Password (again): ")
	second, err := readPassword()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	defer common.WipeByteArray(first)
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}
