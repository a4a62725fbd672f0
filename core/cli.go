package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/glamour"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/taxbot/cache"
	"github.com/stevegt/taxbot/citation"
	"github.com/stevegt/taxbot/client"
	"github.com/stevegt/taxbot/util"
)

// cmdChat is the struct for the chat subcommand.  The chat subcommand
// reads one question per line from stdin and keeps the conversation in
// memory until stdin closes or the user types /quit.
type cmdChat struct {
	History bool `short:"H" help:"Send the whole conversation with each question instead of only the latest one."`
}

type cliArgs struct {
	Cache struct {
		Clear struct{} `cmd:"" help:"Remove all cached responses."`
		Count struct{} `cmd:"" help:"Show the number of cached responses."`
	} `cmd:"" help:"Manage the response cache."`
	CacheFile string        `default:"${cache}" help:"Path of the response cache."`
	CacheTTL  time.Duration `name:"cache-ttl" default:"24h" help:"Age after which a cached response is fetched again; 0 keeps responses until 'cache clear'."`
	Chat      cmdChat       `cmd:"" help:"Chat with TaxBot; reads one question per line on stdin."`
	Markdown  bool          `help:"Render answers as markdown."`
	Model     string        `short:"m" default:"${model}" help:"Model to use."`
	Models    struct{}      `cmd:"" help:"List all available models."`
	NoCache   bool          `help:"Don't read or write the response cache.  Cached answers can lag behind current tax rules by up to --cache-ttl."`
	Parse     struct {
		Text bool `short:"t" help:"Print the formatted answer and sources instead of JSON."`
	} `cmd:"" help:"Parse a raw model reply on stdin into an answer and its sources."`
	Q struct {
		Question string `arg:"" help:"Question to ask TaxBot."`
	} `cmd:"" help:"Ask TaxBot a question."`
	Tc      struct{}      `cmd:"" help:"Calculate the token count of stdin."`
	Timeout time.Duration `default:"60s" help:"How long to wait for each reply."`
	Verbose bool          `short:"v" help:"Show debug and progress information on stderr."`
	Version struct{}      `cmd:"" help:"Show version of taxbot."`
}

// CliConfig contains the configuration for taxbot's cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Providers overrides the clients for the named providers.
	Providers map[string]client.ChatClient
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "taxbot",
		Description: "A command-line tax assistant that answers questions with cited sources.",
		Version:     Version,
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// cmdInSlice returns true if cmd is in cmds. This function only looks
// at the first word in cmd.
func cmdInSlice(cmd string, cmds []string) bool {
	first := strings.Split(cmd, " ")[0]
	return util.StringInSlice(first, cmds)
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.
//
// We use this function instead of kong.Parse() so that we can pass in
// the arguments to parse.  This allows us to more easily test the
// cli subcommands.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	loadDotenv()

	var cli cliArgs
	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
			"model":   defaultModel(),
			"cache":   defaultCachePath(),
		},
	}

	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		// FatalIfErrorf prints usage and calls config.Exit
		parser.FatalIfErrorf(err)
		rc = 1
		err = nil
		return
	}

	if cli.Verbose {
		old, had := os.LookupEnv("DEBUG")
		os.Setenv("DEBUG", "1")
		defer func() {
			if had {
				os.Setenv("DEBUG", old)
			} else {
				os.Unsetenv("DEBUG")
			}
		}()
	}

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)

	// commands that need a model
	botCmds := []string{"q", "chat", "models", "tc"}
	var bot *TaxBot
	if cmdInSlice(cmd, botCmds) {
		bot, err = New(cli.Model)
		Ck(err)
		bot.History = cli.Chat.History
		for name, c := range config.Providers {
			bot.SetProvider(name, c)
		}
	}

	// commands that use the response cache
	cacheCmds := []string{"q", "chat", "cache"}
	if cmdInSlice(cmd, cacheCmds) && !cli.NoCache && cli.CacheFile != "" {
		var store *cache.Cache
		store, err = cache.Open(cli.CacheFile)
		Ck(err)
		defer store.Close()
		store.MaxAge = cli.CacheTTL
		if bot != nil {
			bot.SetCache(store)
		}
		if cmd == "cache clear" {
			err = store.Clear()
			Ck(err)
			Fpf(config.Stdout, "cleared %s\n", cli.CacheFile)
			return
		}
		if cmd == "cache count" {
			var n int
			n, err = store.Count()
			Ck(err)
			Fpf(config.Stdout, "%d\n", n)
			return
		}
	}

	switch cmd {
	case "q <question>":
		reqCtx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
		defer cancel()
		var res citation.Response
		res, err = bot.Ask(reqCtx, cli.Q.Question)
		if errors.Is(err, ErrEmptyMessage) {
			Fpf(config.Stderr, "Error: q command requires a question argument\n")
			rc = 1
			err = nil
			return
		}
		if err != nil {
			Debug("q: %v", err)
			Fpf(config.Stderr, "Error: %s\n", FailureNotice)
			rc = 1
			err = nil
			return
		}
		err = printResponse(config.Stdout, res, cli.Markdown)
		Ck(err)
	case "chat":
		err = chat(bot, config, cli.Timeout, cli.Markdown)
		Ck(err)
	case "parse":
		var buf []byte
		buf, err = io.ReadAll(config.Stdin)
		Ck(err)
		res := citation.Parse(string(buf))
		if cli.Parse.Text {
			err = printResponse(config.Stdout, res, cli.Markdown)
			Ck(err)
			break
		}
		buf, err = json.MarshalIndent(res, "", "  ")
		Ck(err)
		Fpf(config.Stdout, "%s\n", buf)
	case "models":
		for _, m := range bot.ListModels() {
			Fpf(config.Stdout, "%s\n", m)
		}
	case "tc":
		var buf []byte
		buf, err = io.ReadAll(config.Stdin)
		Ck(err)
		var count int
		count, err = bot.TokenCount(strings.TrimSpace(string(buf)))
		Ck(err)
		Fpf(config.Stdout, "%d\n", count)
	case "cache clear", "cache count":
		Fpf(config.Stderr, "Error: the response cache is disabled\n")
		rc = 1
	case "version":
		Fpf(config.Stdout, "taxbot version %s\n", Version)
	default:
		Fpf(config.Stderr, "Error: unrecognized command: %s\n", cmd)
		rc = 1
	}
	return
}

// chat runs the interactive loop for the chat subcommand.
func chat(bot *TaxBot, config *CliConfig, timeout time.Duration, markdown bool) (err error) {
	defer Return(&err)
	conv := NewConversation()
	Fpf(config.Stdout, "%s\n%s\n", WelcomeText, Disclaimer)

	scanner := bufio.NewScanner(config.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		Fpf(config.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/clear":
			conv.Clear()
			Fpf(config.Stdout, "%s\n", WelcomeText)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		reply, sendErr := bot.Send(ctx, conv, line)
		cancel()
		if sendErr != nil {
			Debug("chat: %v", sendErr)
			Fpf(config.Stderr, "Error: %s\n", FailureNotice)
			continue
		}
		res := citation.Response{Answer: reply.Content, Citations: reply.Sources}
		err = printResponse(config.Stdout, res, markdown)
		Ck(err)
	}
	Fpf(config.Stdout, "\n")
	err = scanner.Err()
	Ck(err)
	return
}

// printResponse writes an answer and its sources to w.
func printResponse(w io.Writer, res citation.Response, markdown bool) (err error) {
	defer Return(&err)
	out := res.Format()
	if markdown {
		out, err = glamour.Render(out, "dark")
		Ck(err, "rendering markdown")
	}
	_, err = fmt.Fprintf(w, "%s\n", strings.TrimRight(out, "\n"))
	Ck(err)
	return
}
