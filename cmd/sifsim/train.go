package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"sifsim/internal/config"
	"sifsim/internal/dataset"
	"sifsim/internal/embedding"
	"sifsim/internal/logging"
	"sifsim/internal/metrics"
	"sifsim/internal/model"
	"sifsim/internal/score"
	"sifsim/internal/seed"
	"sifsim/internal/store"
	"sifsim/internal/trainer"
)

const (
	flagConfig                   = "config"
	flagModel                    = "model"
	flagDataset                  = "dataset"
	flagDataDir                  = "data-dir"
	flagEmbeddings               = "embeddings"
	flagFrequencyFile            = "frequency-file"
	flagBatchSize                = "batch-size"
	flagEpochs                   = "epochs"
	flagLR                       = "lr"
	flagWeightDecay              = "weight-decay"
	flagSeed                     = "seed"
	flagDevice                   = "device"
	flagUnsupervised             = "unsupervised"
	flagAlpha                    = "alpha"
	flagNoRemoveSpecialDirection = "no-remove-special-direction"
	flagFrequencyDataset         = "frequency-dataset"
	flagHiddenSize               = "hidden-size"
	flagLogInterval              = "log-interval"
	flagWorkers                  = "workers"
	flagLogLevel                 = "log-level"
	flagDB                       = "db"
)

func trainFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{Name: flagConfig, Usage: "Path to YAML config (optional)"},
		&cli.StringFlag{Name: flagModel, Value: string(def.Model), Usage: "Model family"},
		&cli.StringFlag{Name: flagDataset, Value: string(def.Dataset), Usage: "Relatedness dataset"},
		&cli.StringFlag{Name: flagDataDir, Value: def.DataDir, Usage: "Dataset root with train, dev and test splits"},
		&cli.StringFlag{Name: flagEmbeddings, Value: def.Embeddings, Usage: "GloVe text file with word vectors"},
		&cli.StringFlag{Name: flagFrequencyFile, Value: def.FrequencyFile, Usage: "Word count file used with --frequency-dataset enwiki"},
		&cli.IntFlag{Name: flagBatchSize, Value: def.BatchSize, Usage: "Pairs per batch"},
		&cli.IntFlag{Name: flagEpochs, Value: def.Epochs, Usage: "Training epochs"},
		&cli.FloatFlag{Name: flagLR, Value: def.LR, Usage: "Adam learning rate"},
		&cli.FloatFlag{Name: flagWeightDecay, Value: def.WeightDecay, Usage: "L2 weight decay"},
		&cli.Int64Flag{Name: flagSeed, Value: def.Seed, Usage: "Experiment seed"},
		&cli.IntFlag{Name: flagDevice, Value: def.Device, Usage: "Accelerator index, -1 for CPU only"},
		&cli.BoolFlag{Name: flagUnsupervised, Usage: "Score pairs by cosine similarity without training"},
		&cli.FloatFlag{Name: flagAlpha, Value: def.Alpha, Usage: "SIF smoothing term a in a/(a+p(w))"},
		&cli.BoolFlag{Name: flagNoRemoveSpecialDirection, Usage: "Keep the first principal component in sentence embeddings"},
		&cli.StringFlag{Name: flagFrequencyDataset, Value: string(def.FrequencyDataset), Usage: "Word frequency source: train or enwiki"},
		&cli.IntFlag{Name: flagHiddenSize, Value: def.HiddenSize, Usage: "Classifier hidden units"},
		&cli.IntFlag{Name: flagLogInterval, Value: def.LogInterval, Usage: "Log training stats every N batches"},
		&cli.IntFlag{Name: flagWorkers, Value: def.Workers, Usage: "Batches prepared ahead of the training loop"},
		&cli.StringFlag{Name: flagLogLevel, Value: "info", Usage: "Log level: debug, info, warn or error"},
		&cli.StringFlag{Name: flagDB, Usage: fmt.Sprintf("Path to the run history database (optional, defaults to $HOME/%s/%s)", store.DirName, store.DataFileName)},
	}
}

func overridesFromFlags(cmd *cli.Command) config.Overrides {
	var o config.Overrides
	str := func(flag string) *string {
		if !cmd.IsSet(flag) {
			return nil
		}
		v := cmd.String(flag)
		return &v
	}
	num := func(flag string) *int {
		if !cmd.IsSet(flag) {
			return nil
		}
		v := cmd.Int(flag)
		return &v
	}
	float := func(flag string) *float64 {
		if !cmd.IsSet(flag) {
			return nil
		}
		v := cmd.Float(flag)
		return &v
	}

	o.Model = str(flagModel)
	o.Dataset = str(flagDataset)
	o.DataDir = str(flagDataDir)
	o.Embeddings = str(flagEmbeddings)
	o.FrequencyFile = str(flagFrequencyFile)
	o.FrequencyDataset = str(flagFrequencyDataset)
	o.DB = str(flagDB)
	o.BatchSize = num(flagBatchSize)
	o.Epochs = num(flagEpochs)
	o.Device = num(flagDevice)
	o.HiddenSize = num(flagHiddenSize)
	o.LogInterval = num(flagLogInterval)
	o.Workers = num(flagWorkers)
	o.LR = float(flagLR)
	o.WeightDecay = float(flagWeightDecay)
	o.Alpha = float(flagAlpha)
	if cmd.IsSet(flagSeed) {
		v := cmd.Int64(flagSeed)
		o.Seed = &v
	}
	if cmd.IsSet(flagUnsupervised) {
		v := cmd.Bool(flagUnsupervised)
		o.Unsupervised = &v
	}
	if cmd.IsSet(flagNoRemoveSpecialDirection) {
		v := !cmd.Bool(flagNoRemoveSpecialDirection)
		o.RemoveSpecialDirection = &v
	}
	return o
}

// loadConfig layers defaults, the optional config file and flags, then
// validates the result before anything is read from disk.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyOverrides(overridesFromFlags(cmd))
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if cfg.DB == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfg.DB = p
	}
	return cfg, nil
}

func trainAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.Root().Writer, cmd.String(flagLogLevel))

	if err := store.Init(cfg.DB); err != nil {
		return err
	}
	db, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	runID, err := store.CreateRun(db, cfg)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{"run": runID, "db": cfg.DB}).Debug("run registered")

	res, err := train(ctx, cfg, logger, &store.Recorder{DB: db, RunID: runID})
	if ferr := store.FinishRun(db, runID, res, err); ferr != nil {
		logger.Errorf("failed to finish run %d: %v", runID, ferr)
	}
	if err != nil {
		return err
	}

	fields := log.Fields{"run": runID, "best_epoch": res.BestEpoch}
	for k, v := range res.Test.Metrics {
		fields[k] = v
	}
	logger.WithFields(fields).Info("test results")
	return nil
}

// train builds the data pipeline and model described by cfg and runs them.
func train(ctx context.Context, cfg *config.Config, logger *log.Logger, rec trainer.Recorder) (*trainer.Result, error) {
	sc := seed.New(cfg.Seed, cfg.Device)
	if _, ok := sc.Device(); ok {
		logger.Debugf("derived device stream for device %d", cfg.Device)
	}

	logger.WithFields(log.Fields{"dataset": cfg.Dataset, "dir": cfg.DataDir}).Info("loading dataset")
	data, err := dataset.LoadSICK(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{
		"train": len(data.Train.Examples),
		"dev":   len(data.Dev.Examples),
		"test":  len(data.Test.Examples),
	}).Info("dataset loaded")

	vocab := dataset.Vocabulary(data.Train, data.Dev, data.Test)
	vectors, err := embedding.Load(cfg.Embeddings, func(w string) bool {
		_, ok := vocab[w]
		return ok
	})
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{"words": vectors.Len(), "vocab": len(vocab), "dim": vectors.Dim()}).Info("word vectors loaded")

	mdl, err := model.NewSIF(vectors, model.SIFOptions{
		NumClasses:             data.NumClasses(),
		HiddenSize:             cfg.HiddenSize,
		Alpha:                  cfg.Alpha,
		Unsupervised:           cfg.Unsupervised,
		RemoveSpecialDirection: cfg.RemoveSpecialDirection,
		RNG:                    sc.Init(),
	})
	if err != nil {
		return nil, err
	}

	freq, err := frequencies(cfg, data)
	if err != nil {
		return nil, err
	}
	mdl.PopulateWordFrequencyEstimation(freq)

	sentences := make([][]string, 0, 2*len(data.Train.Examples))
	for _, ex := range data.Train.Examples {
		sentences = append(sentences, ex.A, ex.B)
	}
	if err := mdl.FitSpecialDirection(sentences); err != nil {
		return nil, err
	}

	trainLoader, err := dataset.NewLoader(data.Train.Examples, dataset.LoaderOptions{
		BatchSize:  cfg.BatchSize,
		NumClasses: data.NumClasses(),
		Shuffle:    true,
		RNG:        sc.Loader(),
		Prefetch:   cfg.Workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "train loader")
	}
	devLoader, err := dataset.NewLoader(data.Dev.Examples, dataset.LoaderOptions{
		BatchSize: cfg.BatchSize, NumClasses: data.NumClasses(), Prefetch: cfg.Workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "dev loader")
	}
	testLoader, err := dataset.NewLoader(data.Test.Examples, dataset.LoaderOptions{
		BatchSize: cfg.BatchSize, NumClasses: data.NumClasses(), Prefetch: cfg.Workers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "test loader")
	}

	runner := &trainer.Runner{
		Model:    mdl,
		Loss:     model.KLDivLoss{},
		Metrics:  metrics.Default(),
		YToScore: score.YToScore,
		Device:   cfg.Device,
		Log:      logger,
		Recorder: rec,
	}
	if mdl.Trainable() {
		runner.Optimizer = model.NewAdam(mdl.Params(), cfg.LR, cfg.WeightDecay)
	}
	return runner.Run(ctx, cfg.Epochs, trainLoader, devLoader, testLoader, cfg.LogInterval)
}

func frequencies(cfg *config.Config, data *dataset.SICK) (*dataset.FrequencyTable, error) {
	switch cfg.FrequencyDataset {
	case config.FrequencyTrain:
		return dataset.FrequencyFromExamples(data.Train.Examples), nil
	case config.FrequencyEnwiki:
		return dataset.LoadFrequencyFile(cfg.FrequencyFile)
	}
	return nil, errors.Wrapf(config.ErrUnknownFrequencySource, "frequency dataset %q", cfg.FrequencyDataset)
}
