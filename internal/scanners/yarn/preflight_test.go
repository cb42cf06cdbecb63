package yarn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditgate/internal/cmderr"
	depExec "auditgate/internal/exec"
)

func TestCheckVersion(t *testing.T) {
	cases := []struct {
		name    string
		step    step
		want    string
		wantErr bool
	}{
		{"classic", step{output: "1.22.19\n"}, "1.22.19", false},
		{"classic with warning", step{output: "warning You are using Node 12\n1.22.5\n"}, "1.22.5", false},
		{"berry", step{output: "4.1.0\n"}, "4.1.0", true},
		{"berry rc", step{output: "2.0.0-rc.29\n"}, "2.0.0-rc.29", true},
		{"garbage", step{output: "not a version"}, "", false},
		{"failing", step{output: "boom", exitCode: 2}, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			runner := &scriptedRunner{steps: []step{c.step}}
			v, err := CheckVersion(context.Background(), runner, testConfig())
			if c.wantErr {
				require.Error(t, err)
				assert.True(t, cmderr.Is(err, cmderr.KindTool))
			} else {
				require.NoError(t, err)
			}
			if c.want == "" {
				assert.Nil(t, v)
			} else {
				require.NotNil(t, v)
				assert.Equal(t, c.want, v.String())
			}
			assert.Equal(t, []string{"--version"}, runner.args[0])
		})
	}
}

func TestCheckVersion_NotFound(t *testing.T) {
	runner := &scriptedRunner{steps: []step{{exitCode: depExec.ExitNotFound}}}
	_, err := CheckVersion(context.Background(), runner, testConfig())
	assert.True(t, cmderr.Is(err, cmderr.KindTool))
}
