package moonraker

import (
	"context"
	"fmt"
)

// ListObjects enumerates the control plane's registered printer objects.
// The result is the raw object names, tag prefixes included.
func (c *Client) ListObjects(ctx context.Context) ([]string, error) {
	var result struct {
		Objects []string `json:"objects"`
	}
	if err := c.Call(ctx, "printer.objects.list", nil, &result); err != nil {
		return nil, fmt.Errorf("moonraker: list objects: %w", err)
	}
	return result.Objects, nil
}

// RunScript submits gcode script text for execution as a fire-and-forget
// notification; the control plane's execution result is not observed.
func (c *Client) RunScript(script string) error {
	return c.Notify("printer.gcode.script", map[string]string{"script": script})
}
