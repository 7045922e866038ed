package controller

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github/itish2003/qwenprimer/services"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidSelection is returned for menu input outside the offered choices.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrUnsupportedDevice is returned when the NPU is chosen for text generation.
	ErrUnsupportedDevice = errors.New("NPU is not supported for LLM generation")
)

// Mode is what the CLI does once the model is ready.
type Mode int

const (
	ModeNormal Mode = iota
	ModeRAG
	ModeChat
	ModeRecommend
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeRAG:
		return "rag"
	case ModeChat:
		return "chat"
	case ModeRecommend:
		return "recommend"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// NeedsIndex reports whether the mode retrieves from the document index.
// Chat retrieves only when a documents directory is configured.
func (m Mode) NeedsIndex(hasDocsPath bool) bool {
	return m == ModeRAG || (m == ModeChat && hasDocsPath)
}

var (
	headerColor = color.New(color.FgHiCyan, color.Bold)
	optionColor = color.RGB(150, 150, 150)
	promptColor = color.New(color.FgHiGreen)
	noticeColor = color.RGB(250, 150, 150)
)

// Console reads user input and prints menus and answers.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	markdown bool
}

// NewConsole creates a console over in/out. When markdown is set, answers are
// rendered with glamour before printing.
func NewConsole(in io.Reader, out io.Writer, markdown bool) *Console {
	return &Console{in: bufio.NewReader(in), out: out, markdown: markdown}
}

// SelectDevice shows the device menu and parses the answer.
func (c *Console) SelectDevice() (services.Device, error) {
	headerColor.Fprintln(c.out, "Select device:")
	optionColor.Fprintln(c.out, "0 = CPU (Ollama)")
	optionColor.Fprintln(c.out, "1 = GPU (Ollama)")
	optionColor.Fprintln(c.out, "2 = NPU (NOT supported for LLMs)")
	optionColor.Fprintln(c.out, "3 = Cloud (Gemini API)")

	choice, err := c.ask("Enter device (0/1/2/3): ")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	switch choice {
	case "0":
		return services.DeviceCPU, nil
	case "1":
		return services.DeviceGPU, nil
	case "2":
		return 0, ErrUnsupportedDevice
	case "3":
		return services.DeviceCloud, nil
	default:
		return 0, fmt.Errorf("%w: device %q", ErrInvalidSelection, choice)
	}
}

// SelectMode shows the mode menu and parses the answer.
func (c *Console) SelectMode() (Mode, error) {
	headerColor.Fprintln(c.out, "\nSelect mode:")
	optionColor.Fprintln(c.out, "0 = Normal generation")
	optionColor.Fprintln(c.out, "1 = RAG (Retrieval-Augmented Generation)")
	optionColor.Fprintln(c.out, "2 = Movie recommender chat")
	optionColor.Fprintln(c.out, "3 = Movie recommendations (one question)")

	choice, err := c.ask("Enter mode (0/1/2/3): ")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	switch choice {
	case "0":
		return ModeNormal, nil
	case "1":
		return ModeRAG, nil
	case "2":
		return ModeChat, nil
	case "3":
		return ModeRecommend, nil
	default:
		return 0, fmt.Errorf("%w: mode %q", ErrInvalidSelection, choice)
	}
}

// ask prints label and returns the next trimmed line. io.EOF is returned only
// when the input ended before any text.
func (c *Console) ask(label string) (string, error) {
	promptColor.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) notice(text string) {
	noticeColor.Fprintln(c.out, text)
}

// render returns the answer as it should appear on screen.
func (c *Console) render(answer string) string {
	if !c.markdown {
		return answer
	}
	out, err := glamour.Render(answer, "dark")
	if err != nil {
		log.Printf("CLI WARN: Could not render markdown: %v", err)
		return answer
	}
	return strings.TrimRight(out, "\n")
}
