package ai

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"vehicledetect/internal/config"
	"vehicledetect/internal/logger"
	"vehicledetect/internal/model"
)

// DetectorService owns one DNN network. A network is not safe for concurrent
// Forward calls, so Detect serializes on mu.
type DetectorService struct {
	net        gocv.Net
	family     family
	modelPath  string
	configPath string
	threshold  float32
	logger     *logger.Logger
	mu         sync.Mutex
	ready      bool
}

// NewDetectorService loads the network described by cfg. Unlike a warning-only
// start, a load failure is returned so the caller can refuse to serve.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) (*DetectorService, error) {
	fam, err := familyByName(cfg.ModelFamily)
	if err != nil {
		return nil, err
	}

	s := &DetectorService{
		family:     fam,
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		threshold:  float32(cfg.ConfidenceThreshold),
		logger:     logger,
	}

	if err := s.initializeNet(); err != nil {
		return nil, err
	}
	return s, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	configPath := ""
	if s.family.name == config.FamilySSD {
		if _, err := os.Stat(s.configPath); err != nil {
			return fmt.Errorf("config file not found: %s", s.configPath)
		}
		configPath = s.configPath
	}

	net := gocv.ReadNet(s.modelPath, configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized (%s, %s)", s.family.name, s.modelPath)
	return nil
}

// Detect reports whether the image at imagePath contains the category.
func (s *DetectorService) Detect(imagePath string, category model.Category) (model.Outcome, error) {
	classID, ok := s.family.classIDs[category]
	if !ok {
		return model.Outcome{}, fmt.Errorf("%w: %s", model.ErrUnsupportedCategory, category)
	}

	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return model.Outcome{}, fmt.Errorf("%w from the path: %s", model.ErrImageDecode, imagePath)
	}

	boxes, err := s.forward(mat, classID)
	if err != nil {
		return model.Outcome{}, err
	}

	return newOutcome(boxes), nil
}

// newOutcome reports presence and the best confidence among boxes.
func newOutcome(boxes []model.Box) model.Outcome {
	outcome := model.Outcome{Present: len(boxes) > 0, Boxes: boxes}
	for _, b := range boxes {
		if b.Confidence > outcome.Confidence {
			outcome.Confidence = b.Confidence
		}
	}
	return outcome
}

// forward runs the network restricted to classID and the confidence threshold.
func (s *DetectorService) forward(mat gocv.Mat, classID int) ([]model.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, model.ErrNetworkNotReady
	}

	blob := s.family.blob(mat)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network returned no output")
	}

	return s.family.decode(output, mat.Cols(), mat.Rows(), classID, s.threshold), nil
}

// Family returns the model family name this detector was loaded with.
func (s *DetectorService) Family() string {
	return s.family.name
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}
