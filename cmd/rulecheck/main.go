// Command rulecheck validates a rules file and runs sample text through the
// intent and field rules it defines.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/receptro/internal/fields"
	"github.com/joseph-ayodele/receptro/internal/intent"
	"github.com/joseph-ayodele/receptro/internal/patterns"
)

type checkResult struct {
	Text   string        `json:"text"`
	Intent intent.Result `json:"intent"`
	Reply  string        `json:"reply,omitempty"`
	Fields fields.Result `json:"fields"`
}

func main() {
	var (
		rulesPath = flag.String("rules", "", "YAML rules file (default: built-in rules)")
		text      = flag.String("text", "", "sample text; '-' reads one sample per line from stdin")
		dump      = flag.Bool("dump", false, "print the rules as YAML and exit")
		verbose   = flag.Bool("v", false, "log rule decisions")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := patterns.Default()
	if *rulesPath != "" {
		var err error
		cfg, err = patterns.ReadConfigFile(*rulesPath)
		if err != nil {
			logger.Error("invalid rules file", "error", err)
			os.Exit(1)
		}
	}
	lib, err := patterns.Load(cfg)
	if err != nil {
		logger.Error("rules do not compile", "error", err)
		os.Exit(1)
	}

	if *dump {
		out, err := patterns.MarshalYAML(cfg)
		if err != nil {
			logger.Error("marshal rules", "error", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	fmt.Fprintf(os.Stderr, "ok: %d intent rules, %d field rules, threshold %.2f\n",
		len(lib.IntentRules()), len(lib.FieldRules()), lib.Threshold())

	var samples []string
	switch *text {
	case "":
		return
	case "-":
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				samples = append(samples, line)
			}
		}
		if err := sc.Err(); err != nil {
			logger.Error("read stdin", "error", err)
			os.Exit(1)
		}
	default:
		samples = []string{*text}
	}

	rec := intent.NewRecognizer(lib, logger)
	ext := fields.NewExtractor(lib, logger)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, s := range samples {
		res := checkResult{Text: s, Intent: rec.Recognize(s), Fields: ext.Extract(s)}
		reply, err := rec.Reply(res.Intent)
		if err != nil {
			logger.Warn("reply template failed", "intent", res.Intent.Intent, "error", err)
		}
		res.Reply = reply
		_ = enc.Encode(res)
	}
}
