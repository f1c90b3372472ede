package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const inferenceScriptName = "sklearn_inference.py"

type bridgeRequest struct {
	Rows [][3]float64 `json:"rows"`
}

type bridgeResponse struct {
	HasProba      bool         `json:"has_proba"`
	Predictions   []int        `json:"predictions"`
	Probabilities [][2]float64 `json:"probabilities"`
	Error         string       `json:"error,omitempty"`
}

// pythonClassifier serves a joblib-serialized scikit-learn model through a
// short-lived Python process per call.
type pythonClassifier struct {
	pythonPath string
	scriptPath string
	modelPath  string
	timeout    time.Duration
	metrics    MetricsInterface
}

type pythonEstimator struct {
	*pythonClassifier
}

// LoadPython locates an interpreter with joblib, probes the model once and
// returns a classifier whose capabilities match what the model exposes.
func LoadPython(path string, opts LoadOptions) (Classifier, error) {
	pythonPath, err := findPython(opts.PythonPath)
	if err != nil {
		return nil, err
	}

	scriptPath, err := resolveScript(path)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &pythonClassifier{
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		modelPath:  path,
		timeout:    timeout,
		metrics:    opts.Metrics,
	}

	// An empty request only loads the model and reports its capabilities.
	resp, err := p.run(nil)
	if err != nil {
		return nil, fmt.Errorf("probe model: %w", err)
	}

	log.Info().
		Str("python_path", pythonPath).
		Str("script_path", scriptPath).
		Bool("has_proba", resp.HasProba).
		Msg("scikit-learn model reachable through Python bridge")

	if resp.HasProba {
		return &pythonEstimator{p}, nil
	}
	return p, nil
}

func (p *pythonClassifier) Predict(x [3]float64) (int, error) {
	resp, err := p.run([][3]float64{x})
	if err != nil {
		return 0, err
	}
	return resp.Predictions[0], nil
}

func (p *pythonEstimator) PredictProba(x [3]float64) ([2]float64, error) {
	out, err := p.PredictProbaBatch([][3]float64{x})
	if err != nil {
		return [2]float64{}, err
	}
	return out[0], nil
}

func (p *pythonEstimator) PredictProbaBatch(xs [][3]float64) ([][2]float64, error) {
	if len(xs) == 0 {
		return nil, nil
	}
	resp, err := p.run(xs)
	if err != nil {
		return nil, err
	}
	if !resp.HasProba || len(resp.Probabilities) != len(xs) {
		return nil, fmt.Errorf("expected %d probability rows, got %d", len(xs), len(resp.Probabilities))
	}
	for _, row := range resp.Probabilities {
		if err := checkProba(row); err != nil {
			return nil, err
		}
	}
	return resp.Probabilities, nil
}

func (p *pythonClassifier) run(rows [][3]float64) (*bridgeResponse, error) {
	reqJSON, err := json.Marshal(bridgeRequest{Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pythonPath, p.scriptPath, p.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("python_path", p.pythonPath).
			Str("script_path", p.scriptPath).
			Str("model_path", p.modelPath).
			Str("stderr", stderr.String()).
			Int("rows", len(rows)).
			Dur("timeout", p.timeout).
			Msg("Python inference execution failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if p.metrics != nil {
				p.metrics.MLTimeoutsInc()
			}
			return nil, fmt.Errorf("prediction timeout after %v", p.timeout)
		}
		// The script reports its own failures as JSON on stdout.
		var resp bridgeResponse
		if json.Unmarshal(stdout.Bytes(), &resp) == nil && resp.Error != "" {
			return nil, fmt.Errorf("python inference error: %s", resp.Error)
		}
		if strings.Contains(stderr.String(), "Permission denied") {
			return nil, fmt.Errorf("permission denied accessing model files: %w", err)
		}
		return nil, fmt.Errorf("python inference failed: %w, stderr: %s", err, stderr.String())
	}

	var resp bridgeResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("python inference error: %s", resp.Error)
	}
	if len(resp.Predictions) != len(rows) {
		return nil, fmt.Errorf("expected %d predictions, got %d", len(rows), len(resp.Predictions))
	}

	log.Debug().
		Int("rows", len(rows)).
		Ints("predictions", resp.Predictions).
		Msg("Python inference successful")

	return &resp, nil
}

// resolveScript prefers a script shipped next to the model and otherwise
// writes the embedded one to the temp directory.
func resolveScript(modelPath string) (string, error) {
	shipped := filepath.Join(filepath.Dir(modelPath), inferenceScriptName)
	if _, err := os.Stat(shipped); err == nil {
		return shipped, nil
	}
	scriptPath := filepath.Join(os.TempDir(), "incendios_"+inferenceScriptName)
	if err := createInferenceScript(scriptPath); err != nil {
		return "", fmt.Errorf("write inference script: %w", err)
	}
	return scriptPath, nil
}

func findPython(explicit string) (string, error) {
	if explicit != "" {
		if usablePython(explicit) {
			return explicit, nil
		}
		return "", fmt.Errorf("python at %s is not usable (Python 3 with joblib required)", explicit)
	}

	var candidates []string
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates,
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "bin", "python"),
			filepath.Join(venv, "Scripts", "python.exe"),
		)
	}
	if cwd, err := os.Getwd(); err == nil {
		for _, dir := range []string{"venv", ".venv"} {
			candidates = append(candidates,
				filepath.Join(cwd, dir, "bin", "python3"),
				filepath.Join(cwd, dir, "Scripts", "python.exe"),
			)
		}
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, path)
		}
	}

	for _, candidate := range candidates {
		if usablePython(candidate) {
			log.Debug().Str("python_path", candidate).Msg("Using Python interpreter")
			return candidate, nil
		}
	}
	return "", errors.New("no Python 3 interpreter with joblib found; set PYTHON_PATH")
}

func usablePython(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	cmd := exec.Command(path, "-c", "import sys, joblib; print('Python', sys.version)")
	output, err := cmd.Output()
	return err == nil && strings.Contains(string(output), "Python 3")
}

func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""
scikit-learn inference bridge for the wildfire risk predictor.
Request on stdin: {"rows": [[humidity, wind_speed, temperature], ...]}
"""
import sys
import json

try:
    import joblib
    import numpy as np
except ImportError as exc:
    print(json.dumps({"error": "missing dependency: %s" % exc}))
    sys.exit(1)


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: sklearn_inference.py <model_path>"}))
        sys.exit(1)

    try:
        model = joblib.load(sys.argv[1])
        request = json.load(sys.stdin)
        rows = request.get("rows") or []
        has_proba = hasattr(model, "predict_proba")
        response = {"has_proba": has_proba, "predictions": [], "probabilities": None}

        if rows:
            X = np.array(rows, dtype=float).reshape(-1, 3)
            response["predictions"] = [int(p) for p in model.predict(X)]
            if has_proba:
                response["probabilities"] = [[float(a), float(b)] for a, b in model.predict_proba(X)]

        print(json.dumps(response))
    except Exception as exc:
        print(json.dumps({"error": str(exc)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0755)
}
