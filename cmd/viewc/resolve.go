package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"viewc/internal/controltree"
	"viewc/internal/driver"
)

var resolveFormat string

var resolveCmd = &cobra.Command{
	Use:   "resolve prefix:Tag...",
	Short: "Show the metadata a markup tag resolves to",
	Args:  cobra.MinimumNArgs(1),
	RunE:  resolveExecution,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "pretty", "output format (pretty|json)")
}

type resolvedProperty struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Type     string `json:"type"`
	Declared string `json:"declared_by"`
	Template bool   `json:"template,omitempty"`
	Content  bool   `json:"content,omitempty"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

type resolvedControl struct {
	Tag           string             `json:"tag"`
	Type          string             `json:"type"`
	VirtualPath   string             `json:"virtual_path,omitempty"`
	DataContext   string             `json:"data_context,omitempty"`
	Bases         []string           `json:"bases,omitempty"`
	AllowsContent bool               `json:"allows_content"`
	Constructor   []string           `json:"constructor_args,omitempty"`
	Properties    []resolvedProperty `json:"properties"`
	Groups        []string           `json:"groups,omitempty"`
}

func resolveExecution(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(resolveFormat)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", resolveFormat)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	d, err := driver.New(driver.Options{Config: cfg})
	if err != nil {
		return err
	}

	out := make([]resolvedControl, 0, len(args))
	for _, tag := range args {
		prefix, name, ok := strings.Cut(tag, ":")
		if !ok {
			prefix, name = "", tag
		}
		md, ctorArgs, err := d.Resolver().ResolveControl(prefix, name)
		if err != nil {
			return err
		}
		out = append(out, describeControl(tag, md, ctorArgs))
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, c := range out {
		renderResolvedPretty(cmd.OutOrStdout(), c)
	}
	return nil
}

func describeControl(tag string, md *controltree.Metadata, ctorArgs []any) resolvedControl {
	c := resolvedControl{
		Tag:           tag,
		Type:          md.Type.Type.FullName(),
		VirtualPath:   md.Type.VirtualPath,
		AllowsContent: md.AllowsContent,
	}
	if md.Type.DataContext != nil {
		c.DataContext = md.Type.DataContext.FullName()
	}
	for _, b := range md.Bases {
		c.Bases = append(c.Bases, b.FullName())
	}
	for _, a := range ctorArgs {
		c.Constructor = append(c.Constructor, fmt.Sprintf("%#v", a))
	}
	for _, p := range md.Properties {
		c.Properties = append(c.Properties, resolvedProperty{
			Name:     p.Name,
			Kind:     p.Kind.String(),
			Type:     p.Type.FullName(),
			Declared: p.DeclaringType.FullName(),
			Template: p.IsTemplate,
			Content:  p.IsContent,
			ReadOnly: p.ReadOnly(),
		})
	}
	sort.Slice(c.Properties, func(i, j int) bool { return c.Properties[i].Name < c.Properties[j].Name })
	for _, g := range md.Groups {
		c.Groups = append(c.Groups, fmt.Sprintf("%s %q", g.Name, g.Prefixes))
	}
	return c
}

func renderResolvedPretty(out io.Writer, c resolvedControl) {
	head := color.New(color.Bold)
	dim := color.New(color.Faint)
	fmt.Fprintf(out, "%s -> %s\n", head.Sprint(c.Tag), c.Type)
	if c.VirtualPath != "" {
		fmt.Fprintf(out, "  markup:       %s\n", c.VirtualPath)
	}
	if c.DataContext != "" {
		fmt.Fprintf(out, "  data context: %s\n", c.DataContext)
	}
	if len(c.Bases) > 0 {
		fmt.Fprintf(out, "  bases:        %s\n", strings.Join(c.Bases, ", "))
	}
	if len(c.Constructor) > 0 {
		fmt.Fprintf(out, "  constructor:  %s\n", strings.Join(c.Constructor, ", "))
	}
	fmt.Fprintf(out, "  content:      %v\n", c.AllowsContent)
	for _, p := range c.Properties {
		var flags []string
		if p.Template {
			flags = append(flags, "template")
		}
		if p.Content {
			flags = append(flags, "content")
		}
		if p.ReadOnly {
			flags = append(flags, "read-only")
		}
		line := fmt.Sprintf("  %-20s %-8s %s", p.Name, p.Kind, p.Type)
		if len(flags) > 0 {
			line += " " + dim.Sprint("("+strings.Join(flags, ", ")+")")
		}
		fmt.Fprintln(out, line)
	}
	for _, g := range c.Groups {
		fmt.Fprintf(out, "  group %s\n", g)
	}
}
