package trajectory_test

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/physics"
	"github.com/harvard-visionlab/block-towers/internal/scene"
	"github.com/harvard-visionlab/block-towers/internal/stability"
	"github.com/harvard-visionlab/block-towers/internal/tower"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
)

// probeEngine moves box0 along x by one unit per step and remembers the pose
// box0 had whenever a frame was rendered.
type probeEngine struct {
	dt       float64
	t        float64
	pose     engine.Pose
	rendered []engine.Pose
}

func (p *probeEngine) SetTimestep(dt float64) { p.dt = dt }
func (p *probeEngine) Reset() error {
	p.t = 0
	p.pose = engine.Pose{Name: "box0", XMat: engine.Identity}
	p.rendered = nil
	return nil
}
func (p *probeEngine) Step() error {
	p.t += p.dt
	p.pose.XYZ[0]++
	return nil
}
func (p *probeEngine) Time() float64    { return p.t }
func (p *probeEngine) Bodies() []string { return []string{"box0"} }
func (p *probeEngine) Pose(name string) (engine.Pose, error) {
	if name != "box0" {
		return engine.Pose{}, engine.ErrUnknownBody
	}
	return p.pose, nil
}
func (p *probeEngine) SetPose(pose engine.Pose) error {
	if pose.Name != "box0" {
		return engine.ErrUnknownBody
	}
	p.pose = pose
	return nil
}
func (p *probeEngine) Render(engine.RenderOptions) (image.Image, error) {
	p.rendered = append(p.rendered, p.pose)
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func labeled(xs ...float64) tower.Tower {
	t := make(tower.Tower, len(xs))
	for i, x := range xs {
		t[i] = tower.NewBlock(x, 0, 0.2+0.4*float64(i), 0.4, 0.4, 0.4)
	}
	Expect(stability.Label(t)).To(Succeed())
	return t
}

func kinematic(t tower.Tower) engine.Engine {
	s, err := scene.Build(t)
	Expect(err).NotTo(HaveOccurred())
	eng, err := physics.NewKinematic(s)
	Expect(err).NotTo(HaveOccurred())
	return eng
}

var _ = Describe("Record", func() {
	var (
		ctx    context.Context
		params trajectory.Params
	)

	BeforeEach(func() {
		ctx = context.Background()
		params = trajectory.Params{Duration: 1, Framerate: 60, Timestep: 0.001, ScaleFactor: 1}
	})

	It("numbers frames without gaps at the video rate", func() {
		frames, images, err := trajectory.Record(ctx, kinematic(labeled(0, 0.3)), params, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(images).To(BeEmpty())
		Expect(frames).To(HaveLen(60))

		Expect(frames[0].PhysicsStep).To(Equal(0))
		Expect(frames[0].T).To(Equal(0.0))
		for i, f := range frames {
			Expect(f.VideoFrame).To(Equal(i))
			Expect(f.VideoT).To(BeNumerically("~", float64(i)/60, 1e-12))
			Expect(f.T * params.Framerate).To(BeNumerically(">=", float64(i)))
			Expect(f.Data).To(HaveLen(2))
			if i > 0 {
				Expect(f.PhysicsStep).To(BeNumerically(">", frames[i-1].PhysicsStep))
				Expect(f.T).To(BeNumerically(">", frames[i-1].T))
			}
		}
	})

	It("counts physics steps exactly", func() {
		probe := &probeEngine{}
		frames, _, err := trajectory.Record(ctx, probe, params, nil)
		Expect(err).NotTo(HaveOccurred())
		for _, f := range frames {
			Expect(f.Data[0].XYZ[0]).To(Equal(float64(f.PhysicsStep)))
		}
	})

	It("renders a frame per snapshot when asked", func() {
		opts := engine.DefaultRenderOptions()
		params.Duration = 0.1
		frames, images, err := trajectory.Record(ctx, kinematic(labeled(0, 0)), params, &opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(images).To(HaveLen(len(frames)))
	})

	It("rejects invalid parameters", func() {
		params.Framerate = 0
		_, _, err := trajectory.Record(ctx, &probeEngine{}, params, nil)
		Expect(err).To(MatchError(tower.ErrInvalidParam))
	})

	It("rejects a zero scale factor", func() {
		params.ScaleFactor = 0
		_, _, err := trajectory.Record(ctx, &probeEngine{}, params, nil)
		Expect(err).To(MatchError(tower.ErrInvalidParam))
		Expect(err.Error()).To(ContainSubstring("scale_factor"))
	})

	It("stops when the context is canceled", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := trajectory.Record(canceled, &probeEngine{}, params, nil)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Replay", func() {
	var (
		ctx    context.Context
		params trajectory.Params
		opts   engine.RenderOptions
		start  tower.Tower
		frames []trajectory.Frame
	)

	BeforeEach(func() {
		ctx = context.Background()
		params = trajectory.Params{Duration: 0.5, Framerate: 30, Timestep: 0.001, ScaleFactor: 1}
		opts = engine.DefaultRenderOptions()
		start = labeled(0, 0.1, 0.45)

		var err error
		frames, _, err = trajectory.Record(ctx, kinematic(start), params, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reproduces its own recording without faults", func() {
		images, err := trajectory.Replay(ctx, frames, params.Timestep, kinematic(start), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(images).To(HaveLen(len(frames)))
	})

	It("survives a JSON round trip", func() {
		raw, err := json.Marshal(frames)
		Expect(err).NotTo(HaveOccurred())
		var decoded []trajectory.Frame
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())

		images, err := trajectory.Replay(ctx, decoded, params.Timestep, kinematic(start), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(images).To(HaveLen(len(frames)))
	})

	It("aborts on a time mismatch", func() {
		frames[3].T += 1e-9

		images, err := trajectory.Replay(ctx, frames, params.Timestep, kinematic(start), opts)
		Expect(err).To(MatchError(tower.ErrOutOfSync))
		Expect(images).To(HaveLen(3))

		var se *trajectory.SyncError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Frame).To(Equal(3))
		Expect(se.Reason).To(Equal("time"))
	})

	It("aborts when a recorded step lies behind the engine", func() {
		frames[2].PhysicsStep = frames[1].PhysicsStep - 1

		_, err := trajectory.Replay(ctx, frames, params.Timestep, kinematic(start), opts)
		var se *trajectory.SyncError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Reason).To(Equal("physics step"))
		Expect(se.Frame).To(Equal(2))
	})

	It("aborts when a step count does not land on the recorded time", func() {
		frames[2].PhysicsStep++

		_, err := trajectory.Replay(ctx, frames, params.Timestep, kinematic(start), opts)
		Expect(err).To(MatchError(tower.ErrOutOfSync))
	})

	It("aborts on a gap in frame numbering", func() {
		frames[4].VideoFrame = 7

		_, err := trajectory.Replay(ctx, frames, params.Timestep, kinematic(start), opts)
		Expect(err).To(MatchError(tower.ErrOutOfSync))
	})

	It("renders the stored poses rather than the live engine state", func() {
		probe := &probeEngine{}
		recorded, _, err := trajectory.Record(ctx, probe, params, nil)
		Expect(err).NotTo(HaveOccurred())

		recorded[5].Data[0].XYZ = [3]float64{-1, -2, -3}

		_, err = trajectory.Replay(ctx, recorded, params.Timestep, probe, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(probe.rendered).To(HaveLen(len(recorded)))
		Expect(probe.rendered[5].XYZ).To(Equal([3]float64{-1, -2, -3}))
		Expect(probe.rendered[6].XYZ[0]).To(Equal(float64(recorded[6].PhysicsStep)))
	})
})

var _ = Describe("Generate", func() {
	var params trajectory.Params

	BeforeEach(func() {
		params = trajectory.Params{Duration: 0.2, Framerate: 30, Timestep: 0.001, ScaleFactor: 1}
	})

	It("keeps a stable tower in place", func() {
		start := labeled(0, 0.1)
		sim, _, err := trajectory.Generate(context.Background(), start, physics.Factory, params, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sim.FinalPositions).To(HaveLen(2))
		Expect(sim.FinalPositions[1]).To(Equal(trajectory.Position{X: 0.1, Y: 0, Z: start[1].Z}))
		Expect(sim.Trajectory).To(HaveLen(6))
	})

	It("stores the scaled start positions", func() {
		params.ScaleFactor = 2
		start := labeled(0, 0.1)
		sim, _, err := trajectory.Generate(context.Background(), start, physics.Factory, params, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sim.StartPositions[1].X).To(Equal(0.05))
		Expect(sim.StartPositions[1].LX).To(Equal(0.2))
		Expect(start[1].X).To(Equal(0.1))
	})

	It("replays from the stored simulation", func() {
		sim, _, err := trajectory.Generate(context.Background(), labeled(0, 0.3), physics.Factory, params, nil)
		Expect(err).NotTo(HaveOccurred())
		images, err := sim.Replay(context.Background(), physics.Factory, engine.DefaultRenderOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(images).To(HaveLen(len(sim.Trajectory)))
	})
})

var _ = Describe("Batch", func() {
	It("matches sequential generation and keeps order", func() {
		params := trajectory.Params{Duration: 0.3, Framerate: 30, Timestep: 0.001, ScaleFactor: 1}
		towers := []tower.Tower{
			labeled(0, 0.3), labeled(0, 0.1), labeled(0, -0.3, -0.1),
			labeled(0, 0.1, 0.45), labeled(0, 0), labeled(0, 0.25, 0.3),
		}

		var (
			mu     sync.Mutex
			totals []int
		)
		sims, err := trajectory.Batch(context.Background(), towers, physics.Factory, params, 3, func(done, total int) {
			mu.Lock()
			totals = append(totals, total)
			mu.Unlock()
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sims).To(HaveLen(len(towers)))
		Expect(totals).To(HaveLen(len(towers)))
		Expect(totals).To(HaveEach(len(towers)))

		for i, t := range towers {
			want, _, err := trajectory.Generate(context.Background(), t, physics.Factory, params, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(sims[i]).To(Equal(want))
		}
	})

	It("reports the failing tower", func() {
		params := trajectory.DefaultParams()
		_, err := trajectory.Batch(context.Background(), []tower.Tower{labeled(0), nil}, physics.Factory, params, 2, nil)
		Expect(err).To(MatchError(tower.ErrEmptyTower))
		Expect(err.Error()).To(ContainSubstring("tower 1"))
	})
})
