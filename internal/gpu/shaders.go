// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

// convolveShaderSource applies up to nine kernel taps to one channel of one
// sample per invocation. global_invocation_id.z selects the channel.
//
// The taps are summed by explicit calls rather than a loop: naga's SPIR-V
// output only runs the first iteration of some loops.
const convolveShaderSource = `
struct Params {
    width: u32,
    height: u32,
    channels: u32,
    tap_count: u32,
}

struct Tap {
    dx: i32,
    dy: i32,
    w: f32,
    _pad: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> taps: array<Tap, 9>;
@group(0) @binding(2) var<storage, read> src: array<f32>;
@group(0) @binding(3) var<storage, read_write> dst: array<f32>;

fn sample(x: i32, y: i32, ch: u32, t: Tap) -> f32 {
    let sx = u32(clamp(x + t.dx, 0, i32(params.width) - 1));
    let sy = u32(clamp(y + t.dy, 0, i32(params.height) - 1));
    return t.w * src[(sy * params.width + sx) * params.channels + ch];
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.width || id.y >= params.height || id.z >= params.channels) {
        return;
    }
    let x = i32(id.x);
    let y = i32(id.y);
    var acc = sample(x, y, id.z, taps[0]);
    acc = acc + sample(x, y, id.z, taps[1]);
    acc = acc + sample(x, y, id.z, taps[2]);
    acc = acc + sample(x, y, id.z, taps[3]);
    acc = acc + sample(x, y, id.z, taps[4]);
    acc = acc + sample(x, y, id.z, taps[5]);
    acc = acc + sample(x, y, id.z, taps[6]);
    acc = acc + sample(x, y, id.z, taps[7]);
    acc = acc + sample(x, y, id.z, taps[8]);
    dst[(id.y * params.width + id.x) * params.channels + id.z] = acc;
}
`

// magnitudeShaderSource computes sqrt(gx² + gy²) element-wise.
const magnitudeShaderSource = `
struct Params {
    count: u32,
    row: u32,
    _pad0: u32,
    _pad1: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> gx: array<f32>;
@group(0) @binding(2) var<storage, read> gy: array<f32>;
@group(0) @binding(3) var<storage, read_write> dst: array<f32>;

@compute @workgroup_size(256, 1, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.y * params.row + id.x;
    if (id.x >= params.row || i >= params.count) {
        return;
    }
    let a = gx[i];
    let b = gy[i];
    dst[i] = sqrt(a * a + b * b);
}
`
