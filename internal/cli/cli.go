package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

var (
	userInputColor = color.New(color.FgWhite)
	aiOutputColor  = color.New(color.FgCyan)
	titleColor     = color.New(color.FgMagenta, color.Bold)
	separatorColor = color.New(color.FgHiBlack)
	infoColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	promptColor    = color.New(color.FgHiBlue)

	width = goterm.Width()
)

// Separator printed to cli.
func Separator() {
	separatorColor.Println(strings.Repeat("-", width))
}

// Title printed to cli.
func Title(text string, args ...any) {
	title := "      " + fmt.Sprintf(text, args...) + "      "
	leftWidth := (width - len(title)) / 2
	if leftWidth < 0 {
		leftWidth = 0
	}
	separator1 := strings.Repeat("-", leftWidth)
	separator2 := strings.Repeat("-", max(width-len(title)-len(separator1), 0))
	titleColor.Println(separator1 + title + separator2)
}

// UserInput printed to cli.
func UserInput(text string, args ...any) {
	userInputColor.Printf(text, args...)
}

// AIOutput printed to cli.
func AIOutput(text string, args ...any) {
	text = strings.ReplaceAll(text, "%", "%%")
	aiOutputColor.Printf(text, args...)
}

// Info printed to cli.
func Info(text string, args ...any) {
	infoColor.Printf(text, args...)
}

// Error printed to cli.
func Error(text string, args ...any) {
	errorColor.Printf(text, args...)
}

// PromptUser for a line of input.
func PromptUser() (string, error) {
	config := &readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		HistoryFile:       "/tmp/chathist.history",
		HistorySearchFold: true,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return "", err
	}
	defer rl.Close()
	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	return line, nil
}

// QueryUser a yes/no question.
func QueryUser(question string) bool {
	surveyQuestion := &survey.Confirm{
		Message: question,
	}
	confirm := false
	survey.AskOne(surveyQuestion, &confirm)
	return confirm
}
