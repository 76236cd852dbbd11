package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScript(t *testing.T) {
	script, err := buildScript("return {status: 'ok', value: args[0]};", "</script>", 42, nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "(function(args) {"))
	assert.Contains(t, script, "__forgeDriverElements")
	assert.Contains(t, script, "return {status: 'ok', value: args[0]};")
	assert.NotContains(t, script, "</script>", "arguments must be escaped for embedding")
	assert.Equal(t, []any{"</script>", 42.0, nil}, scriptArgs(script))

	empty, err := buildScript("return null;")
	require.NoError(t, err)
	assert.Equal(t, []any{}, scriptArgs(empty))

	_, err = buildScript("", make(chan int))
	assert.Error(t, err)
}

func TestRunScript(t *testing.T) {
	tests := []struct {
		name    string
		result  any
		err     error
		want    any
		wantErr error
	}{
		{name: "ok", result: ok("v"), want: "v"},
		{name: "no frame", result: status("noFrame"), wantErr: ErrNoSuchFrame},
		{name: "no element", result: status("noElement"), wantErr: ErrNoSuchElement},
		{name: "stale", result: status("stale"), wantErr: ErrStaleElementReference},
		{name: "timeout", result: status("timeout"), wantErr: ErrScriptTimeout},
		{name: "javascript error", result: map[string]any{"status": "error", "value": "x is not defined"}, wantErr: ErrJavaScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{evaluate: func(int, []any) (any, error) {
				return tt.result, tt.err
			}}
			got, err := runScript(context.Background(), runner, "return null;")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunScript_UnexpectedResults(t *testing.T) {
	runner := &fakeRunner{evaluate: func(call int, _ []any) (any, error) {
		switch call {
		case 1:
			return "not an object", nil
		case 2:
			return map[string]any{"status": "maybe"}, nil
		default:
			return nil, errors.New("evaluation failed")
		}
	}}
	ctx := context.Background()

	_, err := runScript(ctx, runner, "")
	assert.ErrorContains(t, err, "unexpected script result")

	_, err = runScript(ctx, runner, "")
	assert.ErrorContains(t, err, "unexpected script status")

	_, err = runScript(ctx, runner, "")
	assert.ErrorContains(t, err, "evaluation failed")
}

func TestToFloat(t *testing.T) {
	for _, v := range []any{3, int64(3), float32(3), 3.0, json.Number("3")} {
		f, ok := toFloat(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, 3.0, f)
	}

	_, ok := toFloat("3")
	assert.False(t, ok)
}
