package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
)

// findPrefix switches an interactive line to retrieval only.
const findPrefix = "find:"

var queryFind string

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about your library",
	Long: `Answers a question from the indexed papers and lists the cited pages.

With --find, only retrieves related passages without generating an answer.
Without arguments, starts an interactive session:
  find: <keywords>   retrieve without answering
  quit, exit, q      leave`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryFind, "find", "f", "", "retrieve passages related to keywords")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	ctx := cmd.Context()
	cmd.Println(mutedStyle.Render("Loading RAG engine..."))
	query, err := s.Query(ctx)
	if err != nil {
		return fmt.Errorf("loading backends: %w", err)
	}
	for _, w := range s.Warnings() {
		cmd.PrintErrln("warning:", w)
	}

	switch {
	case queryFind != "":
		return find(ctx, cmd, query, queryFind)
	case len(args) == 1:
		return ask(ctx, cmd, query, args[0])
	default:
		return interactive(ctx, cmd, query, cmd.InOrStdin())
	}
}

func ask(ctx context.Context, cmd *cobra.Command, query driving.QueryService, question string) error {
	answer, err := query.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	printAnswer(cmd, answer)
	return nil
}

func find(ctx context.Context, cmd *cobra.Command, query driving.QueryService, keywords string) error {
	citations, err := query.Retrieve(ctx, keywords, 0)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	printCitations(cmd, citations)
	return nil
}

// interactive reads questions line by line until EOF or a quit word.
// The prompt is only shown when reading from a terminal.
func interactive(ctx context.Context, cmd *cobra.Command, query driving.QueryService, in io.Reader) error {
	prompt := isTerminal(in)
	if prompt {
		cmd.Println("Interactive mode. Type 'find: <keywords>' to retrieve only, 'quit' to exit.")
	}

	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			cmd.Print("\nQuestion: ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			cmd.Println("Bye!")
			return nil
		}

		var err error
		if strings.HasPrefix(strings.ToLower(line), findPrefix) {
			keywords := strings.TrimSpace(line[len(findPrefix):])
			cmd.Println(mutedStyle.Render("Retrieving: " + keywords))
			err = find(ctx, cmd, query, keywords)
		} else {
			cmd.Println(mutedStyle.Render("Thinking..."))
			err = ask(ctx, cmd, query, line)
		}

		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			cmd.PrintErrln("Error:", userMessage(err))
		}
	}
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// userMessage turns backend failures into actionable text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexNotBuilt):
		return "the index is empty; run `localknowledge index` first"
	case errors.Is(err, domain.ErrLLMUnavailable):
		return "answer generation is unavailable: " + err.Error()
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "the embedding backend is unavailable: " + err.Error()
	default:
		return err.Error()
	}
}
