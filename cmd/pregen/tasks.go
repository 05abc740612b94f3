package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kenvix/pregen/processor"
)

type generatorTasks struct {
	Generator string     `yaml:"generator"`
	Markers   []string   `yaml:"markers"`
	Tasks     []typeTask `yaml:"tasks"`
}

type typeTask struct {
	Type    string       `yaml:"type"`
	Members []memberTask `yaml:"members"`
}

type memberTask struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Position string `yaml:"position"`
}

func newTasksCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks [packages]",
		Short: "Print the members each generator would process, as YAML",
		Long: `tasks loads the given packages and collects the marked members for every
registered generator, without running the generators or writing any output.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := loadSettings(v, cmd.Flags(), args)
			if err != nil {
				return err
			}
			cfg := newProcessorConfig(s, log)
			_, roots, err := cfg.Load()
			if err != nil {
				return err
			}
			report, err := collectAll(cfg.Generators, roots, s.opts)
			if err != nil {
				return err
			}
			return writeTasks(cmd.OutOrStdout(), report)
		},
	}
}

func collectAll(gens []processor.Generator, roots []*processor.Element, opts processor.Options) ([]generatorTasks, error) {
	filter := processor.NewNamespaceFilter(opts)
	report := make([]generatorTasks, 0, len(gens))
	for _, gen := range gens {
		p := processor.NewProcessor(gen)
		tasks, err := processor.CollectTasks(roots, p.SupportedMarkers(), filter)
		if err != nil {
			return nil, err
		}
		gt := generatorTasks{Generator: p.Kind(), Markers: p.SupportedMarkers(), Tasks: []typeTask{}}
		tasks.Range(func(enclosing *processor.Element, members []*processor.Element) bool {
			tt := typeTask{Type: enclosing.QualifiedName()}
			for _, m := range members {
				tt.Members = append(tt.Members, memberTask{
					Name:     m.Name,
					Kind:     m.Kind.String(),
					Position: m.Pos.String(),
				})
			}
			gt.Tasks = append(gt.Tasks, tt)
			return true
		})
		report = append(report, gt)
	}
	return report, nil
}

func writeTasks(w io.Writer, report []generatorTasks) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
