package trainer

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"sifsim/internal/dataset"
	"sifsim/internal/metrics"
	"sifsim/internal/model"
	"sifsim/internal/score"
	"sifsim/internal/seed"
)

// SelectionMetric names the dev metric used to pick the best epoch.
const SelectionMetric = "pearson"

const defaultLogInterval = 1000

// Loss scores log-probabilities against gold distributions.
type Loss interface {
	Forward(y, target mat.Matrix) float64
	Grad(y, target mat.Matrix) *mat.Dense
}

// Optimizer updates model parameters from accumulated gradients.
type Optimizer interface {
	Step()
	ZeroGrad()
}

// ScoreFunc reconstructs continuous scores from model output.
type ScoreFunc func(y mat.Matrix, batch score.ClassBatch) *mat.VecDense

// Recorder persists evaluations as they are produced.
type Recorder interface {
	RecordEvaluation(ctx context.Context, ev Evaluation) error
}

// Evaluation is the outcome of scoring one split.
type Evaluation struct {
	Split       string
	Epoch       int
	Loss        float64
	Metrics     map[string]float64
	IDs         []string
	Predictions []float64
	Gold        []float64
}

// Result summarizes a full run.
type Result struct {
	// BestEpoch is the epoch whose parameters were restored before the test
	// evaluation, 0 for untrained models.
	BestEpoch int
	TrainLoss []float64
	Dev       []Evaluation
	Test      Evaluation
	Steps     int
}

// Runner drives training and evaluation of one model.
type Runner struct {
	Model     model.Model
	Loss      Loss
	Metrics   map[string]metrics.Metric
	Optimizer Optimizer
	YToScore  ScoreFunc
	// Device is the requested accelerator index. Only CPU execution exists.
	Device   int
	Log      log.FieldLogger
	Recorder Recorder
}

func (r *Runner) validate() error {
	if r.Model == nil {
		return errors.New("trainer: model is required")
	}
	if r.Loss == nil {
		return errors.New("trainer: loss is required")
	}
	if r.Model.Trainable() && r.Optimizer == nil {
		return errors.New("trainer: optimizer is required for trainable models")
	}
	if r.YToScore == nil {
		r.YToScore = score.YToScore
	}
	if r.Metrics == nil {
		r.Metrics = metrics.Default()
	}
	if r.Log == nil {
		r.Log = log.StandardLogger()
	}
	return nil
}

// Run trains for epochs passes over train, evaluating dev after each one,
// then restores the parameters with the best dev score and evaluates test.
// Untrainable models skip training and are evaluated once on dev and test.
func (r *Runner) Run(ctx context.Context, epochs int, train, dev, test *dataset.Loader, logInterval int) (*Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if logInterval <= 0 {
		logInterval = defaultLogInterval
	}
	if r.Device != seed.CPU {
		r.Log.Warnf("device %d requested but no accelerator backend is available, running on CPU", r.Device)
	}

	res := &Result{}
	if !r.Model.Trainable() {
		ev, err := r.Evaluate(ctx, "dev", 0, dev)
		if err != nil {
			return nil, err
		}
		res.Dev = append(res.Dev, ev)
		if res.Test, err = r.Evaluate(ctx, "test", 0, test); err != nil {
			return nil, err
		}
		return res, nil
	}

	if epochs <= 0 {
		return nil, errors.Errorf("trainer: epochs must be > 0 (got %d)", epochs)
	}

	var best model.State
	bestScore := math.Inf(-1)
	for epoch := 1; epoch <= epochs; epoch++ {
		loss, err := r.trainEpoch(ctx, epoch, train, logInterval, &res.Steps)
		if err != nil {
			return nil, err
		}
		res.TrainLoss = append(res.TrainLoss, loss)

		ev, err := r.Evaluate(ctx, "dev", epoch, dev)
		if err != nil {
			return nil, err
		}
		res.Dev = append(res.Dev, ev)

		s := selectionScore(ev)
		if best == nil || s > bestScore {
			best, bestScore, res.BestEpoch = model.Snapshot(r.Model), s, epoch
		}
	}

	if err := model.Restore(r.Model, best); err != nil {
		return nil, errors.Wrap(err, "restore best parameters")
	}
	r.Log.WithField("epoch", res.BestEpoch).Info("restored best dev parameters")

	var err error
	if res.Test, err = r.Evaluate(ctx, "test", res.BestEpoch, test); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) trainEpoch(ctx context.Context, epoch int, train *dataset.Loader, logInterval int, steps *int) (float64, error) {
	var (
		window  metrics.Window
		lossSum float64
		pairs   int
		batchNo int
	)
	start := time.Now()
	err := each(ctx, train, func(b dataset.Batch) error {
		dataTime := time.Since(start)
		computeStart := time.Now()

		y := r.Model.Forward(b)
		loss := r.Loss.Forward(y, b.Relatedness)
		if math.IsNaN(loss) {
			return errors.Errorf("epoch %d batch %d: loss is NaN", epoch, batchNo+1)
		}
		r.Optimizer.ZeroGrad()
		r.Model.Backward(r.Loss.Grad(y, b.Relatedness))
		r.Optimizer.Step()

		batchNo++
		*steps++
		lossSum += loss * float64(b.Len())
		pairs += b.Len()
		window.Record(b.Len(), dataTime, time.Since(computeStart), loss)

		if batchNo%logInterval == 0 {
			snap := window.Snapshot()
			r.Log.WithFields(log.Fields{
				"epoch":         epoch,
				"batch":         batchNo,
				"pairs_per_sec": snap.PairsPerSec,
				"data_ms":       snap.AvgDataMS,
				"compute_ms":    snap.AvgComputeMS,
				"loss":          snap.MeanLoss,
			}).Info("training")
		}
		start = time.Now()
		return nil
	})
	if err != nil {
		return 0, err
	}

	mean := lossSum / float64(pairs)
	r.Log.WithFields(log.Fields{"epoch": epoch, "loss": mean}).Info("epoch done")
	return mean, nil
}

// Evaluate scores every pair of split with the current parameters and
// hands the result to the Recorder, if any.
func (r *Runner) Evaluate(ctx context.Context, split string, epoch int, l *dataset.Loader) (Evaluation, error) {
	if err := r.validate(); err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{Split: split, Epoch: epoch, Metrics: make(map[string]float64)}
	var lossSum float64
	err := each(ctx, l, func(b dataset.Batch) error {
		y := r.Model.Forward(b)
		lossSum += r.Loss.Forward(y, b.Relatedness) * float64(b.Len())

		pred := r.YToScore(y, b)
		gold := score.Expected(b.Relatedness)
		for i := 0; i < b.Len(); i++ {
			ev.Predictions = append(ev.Predictions, pred.AtVec(i))
			ev.Gold = append(ev.Gold, gold.AtVec(i))
		}
		ev.IDs = append(ev.IDs, b.IDs...)
		return nil
	})
	if err != nil {
		return Evaluation{}, errors.Wrapf(err, "evaluate %s", split)
	}
	if len(ev.Predictions) > 0 {
		ev.Loss = lossSum / float64(len(ev.Predictions))
	}

	fields := log.Fields{"split": split, "epoch": epoch, "loss": ev.Loss}
	for name, m := range r.Metrics {
		v := m.Compute(ev.Predictions, ev.Gold)
		ev.Metrics[name] = v
		fields[name] = v
	}
	r.Log.WithFields(fields).Info("evaluated")

	if r.Recorder != nil {
		if err := r.Recorder.RecordEvaluation(ctx, ev); err != nil {
			return Evaluation{}, errors.Wrapf(err, "record %s evaluation", split)
		}
	}
	return ev, nil
}

// each feeds one streamed pass of l to fn, stopping at the first error or
// when ctx is done.
func each(ctx context.Context, l *dataset.Loader, fn func(dataset.Batch) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches, errs := l.Stream(ctx)
	for b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	if err := <-errs; err != nil {
		return err
	}
	return ctx.Err()
}

func selectionScore(ev Evaluation) float64 {
	v, ok := ev.Metrics[SelectionMetric]
	if !ok || math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
