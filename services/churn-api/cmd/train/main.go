package main

import (
	"context"
	"flag"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/dataset"
	"github.com/nimeshabuddhika/churnshield/pkg/scoring"
	"go.uber.org/zap"
)

// main fits the churn model on the Telco CSV, reports holdout metrics and writes the model JSON.
//
// Example:
//
//	go run ./services/churn-api/cmd/train \
//	  -data=data/WA_Fn-UseC_-Telco-Customer-Churn.csv \
//	  -out=models/churn_model.json
func main() {
	dataPath := flag.String("data", "data/WA_Fn-UseC_-Telco-Customer-Churn.csv", "Telco customer churn CSV")
	outPath := flag.String("out", "models/churn_model.json", "Where to write the trained model")
	epochs := flag.Int("epochs", 500, "Gradient descent epochs")
	learningRate := flag.Float64("lr", 0.5, "Learning rate")
	l2 := flag.Float64("l2", 0.001, "L2 regularization strength")
	testFraction := flag.Float64("testFraction", 0.2, "Holdout share per class")
	seed := flag.Int64("seed", 42, "Split seed")
	version := flag.String("version", "telco-logreg-custom", "Model version label")
	flag.Parse()

	pkg.InitLogger()
	logger := pkg.Logger
	defer func() { _ = logger.Sync() }()

	logger.Info("loading_dataset", zap.String("path", *dataPath))
	rows, err := dataset.LoadFile(*dataPath)
	if err != nil {
		logger.Fatal("failed to load dataset; download WA_Fn-UseC_-Telco-Customer-Churn.csv from Kaggle", zap.Error(err))
	}
	samples := make([]scoring.Sample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, scoring.Sample{Record: r.Record, Churned: r.Churned})
	}
	train, test := scoring.StratifiedSplit(samples, *testFraction, *seed)
	logger.Info("dataset_split", zap.Int("train", len(train)), zap.Int("test", len(test)))

	opts := scoring.TrainOptions{
		Epochs:         *epochs,
		LearningRate:   *learningRate,
		L2:             *l2,
		BalanceClasses: true,
		Version:        *version,
	}
	model, err := scoring.Train(train, opts)
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	if len(test) > 0 {
		metrics, err := scoring.Evaluate(context.Background(), scoring.NewLocalScorer(model), test)
		if err != nil {
			logger.Fatal("evaluation failed", zap.Error(err))
		}
		logger.Info("holdout_metrics",
			zap.Int("samples", metrics.Samples),
			zap.Float64("accuracy", metrics.Accuracy),
			zap.Float64("precision", metrics.Precision),
			zap.Float64("recall", metrics.Recall),
			zap.Float64("f1", metrics.F1),
			zap.Float64("roc_auc", metrics.ROCAUC))
	}

	if err := model.Save(*outPath); err != nil {
		logger.Fatal("failed to save model", zap.Error(err))
	}
	logger.Info("model_saved", zap.String("path", *outPath), zap.String("version", model.Version))
}
