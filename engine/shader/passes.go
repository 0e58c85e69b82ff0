package shader

// Built-in WGSL for the fixed deferred pipeline. Attachments are read with
// textureLoad at pixel coordinates, so the resolve and post-process passes
// need no samplers.

// GeometryWGSL renders the externally supplied draw list into the G-buffer:
// target 0 is albedo+roughness, target 1 is world normal+metallic.
const GeometryWGSL = `
struct FrameData {
    view_proj: mat4x4<f32>,
};

struct DrawData {
    model: mat4x4<f32>,
    albedo: vec4<f32>,
    material: vec4<f32>, // x = metallic, y = roughness
};

@group(0) @binding(0) var<uniform> frame: FrameData;
@group(1) @binding(0) var<uniform> draw: DrawData;

struct VertexIn {
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
};

struct VertexOut {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) world_normal: vec3<f32>,
};

@vertex
fn vs_main(in: VertexIn) -> VertexOut {
    var out: VertexOut;
    let world = draw.model * vec4<f32>(in.position, 1.0);
    out.clip_position = frame.view_proj * world;
    // Uniform-scale assumption: the model matrix rotates normals correctly.
    out.world_normal = normalize((draw.model * vec4<f32>(in.normal, 0.0)).xyz);
    return out;
}

struct GBufferOut {
    @location(0) albedo_rough: vec4<f32>,
    @location(1) normal_metal: vec4<f32>,
};

@fragment
fn fs_main(in: VertexOut) -> GBufferOut {
    var out: GBufferOut;
    out.albedo_rough = vec4<f32>(draw.albedo.rgb, draw.material.y);
    out.normal_metal = vec4<f32>(normalize(in.world_normal), draw.material.x);
    return out;
}
`

// LightingWGSL resolves the G-buffer with a Cook-Torrance BRDF
// (Trowbridge-Reitz GGX distribution, Smith geometry with Schlick-GGX per
// direction, Schlick Fresnel). One light per draw, accumulated additively
// into the HDR target.
const LightingWGSL = `
struct LightData {
    inv_view_proj: mat4x4<f32>,
    camera_pos: vec4<f32>,
    // vec_a: direction (directional) or position (point)
    vec_a: vec4<f32>,
    // vec_b: irradiance (directional) or luminous flux (point); w = kind (0 = directional, 1 = point)
    vec_b: vec4<f32>,
};

@group(0) @binding(0) var g_albedo_rough: texture_2d<f32>;
@group(0) @binding(1) var g_normal_metal: texture_2d<f32>;
@group(0) @binding(2) var g_depth: texture_depth_2d;
@group(0) @binding(3) var<uniform> light: LightData;

struct VertexOut {
    @builtin(position) clip_position: vec4<f32>,
};

// Fullscreen triangle, no vertex buffer.
@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOut {
    var out: VertexOut;
    let x = f32(i32(index) / 2) * 4.0 - 1.0;
    let y = f32(i32(index) % 2) * 4.0 - 1.0;
    out.clip_position = vec4<f32>(x, y, 0.0, 1.0);
    return out;
}

const PI: f32 = 3.14159265358979;

fn distribution_ggx(n_dot_h: f32, roughness: f32) -> f32 {
    let a = roughness * roughness;
    let a2 = a * a;
    let d = n_dot_h * n_dot_h * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

fn geometry_schlick_ggx(n_dot_v: f32, roughness: f32) -> f32 {
    let r = roughness + 1.0;
    let k = (r * r) / 8.0;
    return n_dot_v / (n_dot_v * (1.0 - k) + k);
}

fn geometry_smith(n_dot_v: f32, n_dot_l: f32, roughness: f32) -> f32 {
    return geometry_schlick_ggx(n_dot_v, roughness) * geometry_schlick_ggx(n_dot_l, roughness);
}

fn fresnel_schlick(cos_theta: f32, f0: vec3<f32>) -> vec3<f32> {
    return f0 + (vec3<f32>(1.0) - f0) * pow(clamp(1.0 - cos_theta, 0.0, 1.0), 5.0);
}

@fragment
fn fs_main(@builtin(position) frag_pos: vec4<f32>) -> @location(0) vec4<f32> {
    let coords = vec2<i32>(frag_pos.xy);
    let albedo_rough = textureLoad(g_albedo_rough, coords, 0);
    let normal_metal = textureLoad(g_normal_metal, coords, 0);
    let depth = textureLoad(g_depth, coords, 0);

    let albedo = albedo_rough.rgb;
    let roughness = albedo_rough.a;
    let n = normalize(normal_metal.xyz);
    let metallic = normal_metal.a;

    // Reconstruct the world-space position from depth.
    let dims = vec2<f32>(textureDimensions(g_albedo_rough));
    let ndc = vec4<f32>(
        (frag_pos.x / dims.x) * 2.0 - 1.0,
        1.0 - (frag_pos.y / dims.y) * 2.0,
        depth,
        1.0,
    );
    let world_h = light.inv_view_proj * ndc;
    let world_pos = world_h.xyz / world_h.w;

    var l: vec3<f32>;
    var irradiance: vec3<f32>;
    if (light.vec_b.w < 0.5) {
        l = normalize(-light.vec_a.xyz);
        irradiance = light.vec_b.xyz;
    } else {
        let to_light = light.vec_a.xyz - world_pos;
        let dist2 = max(dot(to_light, to_light), 1e-6);
        l = to_light / sqrt(dist2);
        irradiance = light.vec_b.xyz / (4.0 * PI * dist2);
    }

    let v = normalize(light.camera_pos.xyz - world_pos);
    let h = normalize(v + l);
    let n_dot_l = max(dot(n, l), 0.0);
    let n_dot_v = max(dot(n, v), 1e-4);
    let n_dot_h = max(dot(n, h), 0.0);

    let f0 = mix(vec3<f32>(0.04), albedo, metallic);
    let d = distribution_ggx(n_dot_h, roughness);
    let g = geometry_smith(n_dot_v, n_dot_l, roughness);
    let f = fresnel_schlick(max(dot(h, v), 0.0), f0);

    let specular = (d * g * f) / max(4.0 * n_dot_v * n_dot_l, 1e-4);
    let k_d = (vec3<f32>(1.0) - f) * (1.0 - metallic);
    let diffuse = k_d * albedo / PI;

    let radiance = (diffuse + specular) * irradiance * n_dot_l;
    return vec4<f32>(radiance, 1.0);
}
`

// PostProcessWGSL applies Reinhard tone mapping to the HDR resolve target,
// producing the presentable image.
const PostProcessWGSL = `
@group(0) @binding(0) var hdr_color: texture_2d<f32>;

struct VertexOut {
    @builtin(position) clip_position: vec4<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOut {
    var out: VertexOut;
    let x = f32(i32(index) / 2) * 4.0 - 1.0;
    let y = f32(i32(index) % 2) * 4.0 - 1.0;
    out.clip_position = vec4<f32>(x, y, 0.0, 1.0);
    return out;
}

@fragment
fn fs_main(@builtin(position) frag_pos: vec4<f32>) -> @location(0) vec4<f32> {
    let coords = vec2<i32>(frag_pos.xy);
    let hdr = textureLoad(hdr_color, coords, 0).rgb;
    let mapped = hdr / (vec3<f32>(1.0) + hdr);
    return vec4<f32>(mapped, 1.0);
}
`

// GeometryVertexBindings is the hand-declared reflection metadata for the
// geometry pass vertex stage.
func GeometryVertexBindings() []Binding {
	return []Binding{
		{Set: 0, Binding: 0, Kind: KindUniformBuffer, Stages: StageVertex, Count: 1},
		{Set: 1, Binding: 0, Kind: KindUniformBuffer, Stages: StageVertex, Count: 1},
	}
}

// GeometryFragmentBindings is the hand-declared reflection metadata for the
// geometry pass fragment stage.
func GeometryFragmentBindings() []Binding {
	return []Binding{
		{Set: 1, Binding: 0, Kind: KindUniformBuffer, Stages: StageFragment, Count: 1},
	}
}

// LightingFragmentBindings is the hand-declared reflection metadata for the
// lighting resolve pass fragment stage. The vertex stage binds nothing.
func LightingFragmentBindings() []Binding {
	return []Binding{
		{Set: 0, Binding: 0, Kind: KindSampledImage, Stages: StageFragment, Count: 1},
		{Set: 0, Binding: 1, Kind: KindSampledImage, Stages: StageFragment, Count: 1},
		{Set: 0, Binding: 2, Kind: KindSampledImage, Stages: StageFragment, Count: 1, Depth: true},
		{Set: 0, Binding: 3, Kind: KindUniformBuffer, Stages: StageFragment, Count: 1},
	}
}

// PostProcessFragmentBindings is the hand-declared reflection metadata for
// the post-process pass fragment stage.
func PostProcessFragmentBindings() []Binding {
	return []Binding{
		{Set: 0, Binding: 0, Kind: KindSampledImage, Stages: StageFragment, Count: 1},
	}
}
