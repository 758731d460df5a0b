package core

import "sync"

const AVG_COUNT uint8 = 30

type MetricsState struct {
	CompileAVGCounter   uint8
	MStimes             [AVG_COUNT]float64
	MSavg               float64
	ComputePipelines    int32
	GraphicsPipelines   int32
	AccumulatedCompiles int32

	mutex sync.Mutex
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

// MetricsPipelineCompiled records one pipeline construction. The elapsed time
// is expected in nanoseconds, as produced by Clock.Elapsed.
func MetricsPipelineCompiled(elapsedNS float64, graphics bool) {
	if metricsState == nil {
		return
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()

	// Calculate compile ms average
	compileMS := elapsedNS / 1_000_000.0
	metricsState.MStimes[metricsState.CompileAVGCounter] = compileMS
	if metricsState.CompileAVGCounter == AVG_COUNT-1 {
		metricsState.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}
		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.CompileAVGCounter++
	metricsState.CompileAVGCounter %= AVG_COUNT

	if graphics {
		metricsState.GraphicsPipelines++
	} else {
		metricsState.ComputePipelines++
	}
	metricsState.AccumulatedCompiles++
}

func MetricsCompileTime() float64 {
	if metricsState == nil {
		return 0
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	return metricsState.MSavg
}

func MetricsPipelines() (int32, int32) {
	if metricsState == nil {
		return 0, 0
	}
	metricsState.mutex.Lock()
	defer metricsState.mutex.Unlock()
	return metricsState.ComputePipelines, metricsState.GraphicsPipelines
}
