// Package defaults embeds the shipped default answer file and options-format
// file, so forge-setup works out of the box even when the packaged copies
// under /usr/share/forge are absent.
package defaults

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
)

//go:embed answers.conf
var answersConf []byte

//go:embed options-format.conf
var optionsFormatConf []byte

// EmbeddedAnswers returns the embedded default answer file. The CLI flag
// surface is generated from it at startup, before any configuration is read.
func EmbeddedAnswers() []byte {
	return answersConf
}

// AnswerFile returns the default answer file content, preferring the on-disk
// copy at path and falling back to the embedded one when the path does not
// exist. The returned name labels parse errors.
func AnswerFile(path string) (name string, data []byte, err error) {
	return fileOrEmbedded(path, "built-in default answers", answersConf)
}

// OptionsFormat returns the options-format file content, with the same
// disk-then-embedded resolution as AnswerFile.
func OptionsFormat(path string) (name string, data []byte, err error) {
	return fileOrEmbedded(path, "built-in options format", optionsFormatConf)
}

func fileOrEmbedded(path, embeddedName string, embedded []byte) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return path, data, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return embeddedName, embedded, nil
	}
	return "", nil, err
}
