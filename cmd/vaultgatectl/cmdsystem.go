package main

import "fmt"

type cmdHealth struct{}

// Execute satisfies the go-flags Commander interface.
func (c *cmdHealth) Execute(args []string) error {
	h, err := newClient().GetReadiness(ctx())
	if err != nil {
		return err
	}
	return printJSON(h)
}

type cmdSettings struct{}

// Execute satisfies the go-flags Commander interface.
func (c *cmdSettings) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	list, err := a.ListSettings(ctx())
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Printf("%-20s %s\n", s.Key, s.Value)
	}
	return nil
}

type cmdSettingSet struct {
	Args struct {
		Key   string `positional-arg-name:"key" required:"true"`
		Value string `positional-arg-name:"value" required:"true"`
	} `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdSettingSet) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	return a.PutSetting(ctx(), c.Args.Key, c.Args.Value)
}
