package graph

import (
	"fmt"

	"github.com/Kalix-Works/helix-go/common"
	"github.com/Kalix-Works/helix-go/engine/device"
	"github.com/Kalix-Works/helix-go/engine/resource"
)

// Attachment labels, stable so captures and logs can be correlated.
const (
	labelAlbedoRough = "gbuffer albedo+roughness"
	labelNormalMetal = "gbuffer normal+metallic"
	labelDepth       = "gbuffer depth"
	labelHDR         = "hdr resolve"
)

// gBuffer owns the intermediate attachments of the deferred pipeline: two
// geometry targets, the depth buffer, and the HDR target the lighting pass
// accumulates into. All four are recreated together on resize so a frame
// never sees a mixed-extent set.
type gBuffer struct {
	albedoRough device.Texture
	normalMetal device.Texture
	depth       device.Texture
	hdr         device.Texture
	extent      common.Extent
}

func newGBuffer(mgr resource.Manager, extent common.Extent) (*gBuffer, error) {
	if extent.IsZero() {
		return nil, fmt.Errorf("cannot create gbuffer with zero extent %dx%d", extent.Width, extent.Height)
	}

	g := &gBuffer{extent: extent}
	sampled := device.TextureUsageRenderAttachment | device.TextureUsageSampled

	var err error
	if g.albedoRough, err = mgr.CreateAttachment(labelAlbedoRough, extent, device.FormatRGBA16Float, sampled); err != nil {
		return nil, err
	}
	if g.normalMetal, err = mgr.CreateAttachment(labelNormalMetal, extent, device.FormatRGBA16Float, sampled); err != nil {
		g.releaseCreated()
		return nil, err
	}
	if g.depth, err = mgr.CreateAttachment(labelDepth, extent, device.FormatDepth24Plus, sampled); err != nil {
		g.releaseCreated()
		return nil, err
	}
	if g.hdr, err = mgr.CreateAttachment(labelHDR, extent, device.FormatRGBA16Float, sampled); err != nil {
		g.releaseCreated()
		return nil, err
	}
	return g, nil
}

// releaseCreated frees whatever a partially constructed gbuffer managed to
// allocate. Nothing has referenced the textures yet, so immediate release
// is safe.
func (g *gBuffer) releaseCreated() {
	for _, t := range []device.Texture{g.albedoRough, g.normalMetal, g.depth, g.hdr} {
		if t != nil {
			t.Release()
		}
	}
}

// deferRelease queues every attachment for destruction once the current
// frame retires. Used when a resize replaces the set while older frames may
// still sample the old attachments.
func (g *gBuffer) deferRelease(mgr resource.Manager) {
	mgr.DeferRelease(g.albedoRough)
	mgr.DeferRelease(g.normalMetal)
	mgr.DeferRelease(g.depth)
	mgr.DeferRelease(g.hdr)
}
