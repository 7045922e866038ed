package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github/itish2003/qwenprimer/models"
	"github/itish2003/qwenprimer/services"

	log "github.com/sirupsen/logrus"
)

// CLIController runs one interaction mode against the RAGService.
type CLIController struct {
	ragService services.RAGService
	console    *Console
}

// NewCLIController creates a controller; the console is shared with the menus.
func NewCLIController(service services.RAGService, console *Console) *CLIController {
	return &CLIController{
		ragService: service,
		console:    console,
	}
}

// ChatOptions configures the recommender chat loop.
type ChatOptions struct {
	// Grounded retrieves passages from the index for every turn.
	Grounded bool
	TopK     int
	// Changed delivers paths of edited documents; Reload is called before the next
	// turn when at least one arrived.
	Changed <-chan string
	Reload  func(ctx context.Context) error
}

// Run dispatches to the handler for mode.
func (c *CLIController) Run(ctx context.Context, mode Mode, chat ChatOptions) error {
	switch mode {
	case ModeNormal:
		return c.RunNormal(ctx)
	case ModeRAG:
		return c.RunRAG(ctx)
	case ModeChat:
		return c.RunChat(ctx, chat)
	case ModeRecommend:
		return c.RunRecommend(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSelection, mode)
	}
}

// RunNormal answers one prompt with sampled decoding.
func (c *CLIController) RunNormal(ctx context.Context) error {
	prompt, err := c.console.ask("\nEnter your prompt: ")
	if err != nil {
		return fmt.Errorf("could not read prompt: %w", err)
	}
	resp, err := c.ragService.Generate(ctx, models.GenerateRequest{Prompt: prompt, Decoding: models.SampledDecoding()})
	if err != nil {
		return err
	}
	c.printOutput(resp.Text, resp.Elapsed)
	return nil
}

// RunRAG answers one prompt with retrieved context.
func (c *CLIController) RunRAG(ctx context.Context) error {
	question, err := c.console.ask("\nEnter your prompt: ")
	if err != nil {
		return fmt.Errorf("could not read prompt: %w", err)
	}
	resp, err := c.ragService.QueryRAG(ctx, models.QueryTextRequest{Query: question})
	if err != nil {
		return err
	}
	for _, d := range resp.SourceDocs {
		log.WithField("position", d.Position).WithField("distance", d.Distance).Debug("CLI: Context document")
	}
	c.printOutput(resp.Answer, resp.Elapsed)
	return nil
}

// RunRecommend asks one movie question in the question/answer format.
func (c *CLIController) RunRecommend(ctx context.Context) error {
	question, err := c.console.ask("\nWhat kind of movies are you looking for? ")
	if err != nil {
		return fmt.Errorf("could not read question: %w", err)
	}
	c.console.notice("--- Thinking... ---")
	resp, err := c.ragService.Generate(ctx, models.GenerateRequest{
		Prompt:   services.BuildRecommendationPrompt(question),
		Decoding: services.RecommendationDecoding(),
	})
	if err != nil {
		return err
	}
	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		fmt.Fprintln(c.console.out, "\n"+services.EmptyAnswerMessage)
		return nil
	}
	fmt.Fprintf(c.console.out, "\nRecommendations:\n%s\n", c.console.render(answer))
	return nil
}

// RunChat loops until the user types exit or quit, or the input ends.
func (c *CLIController) RunChat(ctx context.Context, opts ChatOptions) error {
	headerColor.Fprintln(c.console.out, "\n--- Movie Recommender AI (Chatter) ---")
	c.console.notice("Type 'exit' or 'quit' to leave.")

	for {
		if err := c.reloadIfChanged(ctx, opts); err != nil {
			return err
		}

		input, err := c.console.ask("\nYou: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}
		switch strings.ToLower(input) {
		case "exit", "quit":
			return nil
		case "":
			continue
		}

		prompt := services.BuildChatPrompt(input)
		if opts.Grounded {
			docs, err := c.ragService.Retrieve(ctx, input, opts.TopK)
			if err != nil {
				return err
			}
			prompt = services.BuildGroundedChatPrompt(input, docs)
		}

		resp, err := c.ragService.Generate(ctx, models.GenerateRequest{Prompt: prompt, Decoding: services.ChatDecoding()})
		if err != nil {
			return err
		}
		answer := strings.TrimSpace(resp.Text)
		if answer == "" {
			fmt.Fprintln(c.console.out, "AI: "+services.EmptyAnswerMessage)
			continue
		}
		fmt.Fprintf(c.console.out, "\nAI: %s\n", c.console.render(answer))
	}
}

// reloadIfChanged drains pending change notifications and reloads once.
func (c *CLIController) reloadIfChanged(ctx context.Context, opts ChatOptions) error {
	if opts.Changed == nil || opts.Reload == nil {
		return nil
	}
	changed := 0
drain:
	for {
		select {
		case path, ok := <-opts.Changed:
			if !ok {
				break drain
			}
			log.Printf("CLI: Document changed: %s", path)
			changed++
		default:
			break drain
		}
	}
	if changed == 0 {
		return nil
	}
	c.console.notice("Documents changed, rebuilding the index...")
	if err := opts.Reload(ctx); err != nil {
		return fmt.Errorf("could not rebuild index: %w", err)
	}
	return nil
}

func (c *CLIController) printOutput(answer string, elapsed time.Duration) {
	headerColor.Fprintln(c.console.out, "\n=== Output ===")
	fmt.Fprintln(c.console.out, c.console.render(answer))
	fmt.Fprintf(c.console.out, "\n⏱️ Generation took %.3f seconds\n", elapsed.Seconds())
}
