package main

import (
	"embed"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/ynishi/dot-agent/pkg/cobrax/topics"
)

//go:embed topics/*.md
var topicFiles embed.FS

// initTopics installs the topic-aware help command
func initTopics(rootCmd *cobra.Command) error {
	sub, err := fs.Sub(topicFiles, "topics")
	if err != nil {
		return err
	}
	_, err = topics.Initialize(rootCmd, sub, topics.Options{
		Extensions: []string{".md"},
		Renderer:   &topics.MarkdownRenderer{Width: 80},
	})
	return err
}
