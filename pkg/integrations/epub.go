package integrations

import (
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-shiori/go-epub"
	"go.uber.org/zap"

	"github.com/kerbaras/txt2epub/pkg/chapters"
	"github.com/kerbaras/txt2epub/pkg/logger"
)

const bookCSS = `body { line-height: 1.6; }
h1 { text-align: center; margin: 2em 0 1em; }
p { text-indent: 1em; margin: 0 0 0.4em; }
div.illustration { text-align: center; page-break-after: always; }
div.illustration img { max-width: 100%; height: auto; }
`

// BookOptions carries the metadata of one book. Empty fields fall back to
// the builder's defaults.
type BookOptions struct {
	Title       string
	Author      string
	Language    string
	Description string
	CoverPath   string
	OutputPath  string
}

type EPubBuilder struct {
	outputDir string
	author    string
	language  string
	images    *IllustrationProcessor
	logger    *zap.Logger
}

func NewEPubBuilder(outputDir, author, language string, images *IllustrationProcessor, l *zap.Logger) *EPubBuilder {
	if images == nil {
		images = NewIllustrationProcessor(DefaultIllustrationSettings())
	}
	return &EPubBuilder{
		outputDir: outputDir,
		author:    author,
		language:  language,
		images:    images,
		logger:    logger.OrNop(l),
	}
}

type section struct {
	chapter      bool
	title        string
	illustration string
	paragraphs   []string
}

// Build splits the UTF-8 text at textPath into one section per selected
// chapter, each starting at the chapter's heading line. Non-blank text before
// the first chapter becomes an opening section. With no chapters the whole
// text is a single section.
func (b *EPubBuilder) Build(textPath string, selected []chapters.ChapterRecord, opts BookOptions) (string, error) {
	opts = b.withDefaults(textPath, opts)

	sections, err := splitSections(textPath, selected, opts.Title)
	if err != nil {
		return "", err
	}
	if len(sections) == 0 {
		return "", errors.New("no text to put in the book")
	}

	tmpDir, err := os.MkdirTemp("", "txt2epub-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create build directory: %w", err)
	}
	// go-epub reads media when the book is written.
	defer os.RemoveAll(tmpDir)

	e, err := epub.NewEpub(opts.Title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetAuthor(opts.Author)
	e.SetLang(opts.Language)
	if opts.Description != "" {
		e.SetDescription(opts.Description)
	}

	cssPath := filepath.Join(tmpDir, "book.css")
	if err := os.WriteFile(cssPath, []byte(bookCSS), 0644); err != nil {
		return "", fmt.Errorf("failed to write stylesheet: %w", err)
	}
	css, err := e.AddCSS(cssPath, "book.css")
	if err != nil {
		return "", fmt.Errorf("failed to add stylesheet: %w", err)
	}

	if opts.CoverPath != "" {
		src, err := b.addImage(e, tmpDir, opts.CoverPath, "cover.jpg")
		if err != nil {
			return "", fmt.Errorf("failed to add cover: %w", err)
		}
		body := fmt.Sprintf(`<div class="illustration"><img src="%s" alt="%s"/></div>`, src, html.EscapeString(opts.Title))
		if _, err := e.AddSection(body, "Cover", "cover.xhtml", css); err != nil {
			return "", fmt.Errorf("failed to add cover section: %w", err)
		}
	}

	for i, s := range sections {
		var imgSrc string
		if s.illustration != "" {
			imgSrc, err = b.addImage(e, tmpDir, s.illustration, fmt.Sprintf("illustration%04d.jpg", i+1))
			if err != nil {
				return "", fmt.Errorf("failed to add illustration for %q: %w", s.title, err)
			}
		}

		filename := fmt.Sprintf("section%04d.xhtml", i+1)
		if _, err := e.AddSection(renderSection(s, imgSrc), s.title, filename, css); err != nil {
			return "", fmt.Errorf("failed to add section %q: %w", s.title, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := e.Write(opts.OutputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}

	b.logger.Info("book written",
		zap.String("path", opts.OutputPath),
		zap.Int("sections", len(sections)),
	)
	return opts.OutputPath, nil
}

func (b *EPubBuilder) withDefaults(textPath string, opts BookOptions) BookOptions {
	stem := strings.TrimSuffix(filepath.Base(textPath), filepath.Ext(textPath))
	if opts.Title == "" {
		opts.Title = stem
	}
	if opts.Author == "" {
		opts.Author = b.author
	}
	if opts.Language == "" {
		opts.Language = b.language
	}
	if opts.OutputPath == "" {
		dir := b.outputDir
		if dir == "" {
			dir = filepath.Dir(textPath)
		}
		opts.OutputPath = filepath.Join(dir, sanitizeFilename(opts.Title)+".epub")
	}
	return opts
}

func (b *EPubBuilder) addImage(e *epub.Epub, tmpDir, path, name string) (string, error) {
	data, err := b.images.ProcessFile(path)
	if err != nil {
		return "", err
	}

	staged := filepath.Join(tmpDir, name)
	if err := os.WriteFile(staged, data, 0644); err != nil {
		return "", err
	}
	return e.AddImage(staged, name)
}

// splitSections reads the text once.
func splitSections(textPath string, selected []chapters.ChapterRecord, title string) ([]section, error) {
	selected = slices.Clone(selected)
	slices.SortFunc(selected, func(a, b chapters.ChapterRecord) int { return a.LineNo - b.LineNo })

	f, err := os.Open(textPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open text: %w", err)
	}
	defer f.Close()

	var sections []section
	current := &section{title: title}
	next := 0

	lines := chapters.NewLineReader(f)
	for lineNo := 1; ; lineNo++ {
		raw, readErr := lines.ReadLine()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read text: %w", readErr)
		}

		line := string(raw)
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		line = strings.ToValidUTF8(line, "\uFFFD")

		if next < len(selected) && selected[next].LineNo == lineNo {
			if current.chapter || len(current.paragraphs) > 0 {
				sections = append(sections, *current)
			}
			current = &section{
				chapter:      true,
				title:        strings.TrimSpace(line),
				illustration: selected[next].IllustrationPath,
			}
			next++
		} else if strings.TrimSpace(line) != "" {
			current.paragraphs = append(current.paragraphs, strings.TrimSpace(line))
		}
	}

	// A chapter heading is kept even when nothing follows it.
	if current.chapter || len(current.paragraphs) > 0 {
		sections = append(sections, *current)
	}
	return sections, nil
}

func renderSection(s section, imgSrc string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(s.title)))
	if imgSrc != "" {
		sb.WriteString(fmt.Sprintf(`<div class="illustration"><img src="%s" alt="%s"/></div>`+"\n",
			imgSrc, html.EscapeString(s.title)))
	}
	for _, p := range s.paragraphs {
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(p))
		sb.WriteString("</p>\n")
	}
	return sb.String()
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		return "book"
	}
	return result
}
