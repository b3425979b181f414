// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trustchain models the append-only, hash-chained, signed action
// log (spec §4.3, §4.4): the tagged union of action variants, and the
// block wrapper that carries a signed, hashed action onto the chain.
//
// Each action variant owns its fields; there is no inheritance between
// variants (spec §9 design note "Tagged unions").
package trustchain

// Nature identifies an action variant. The numbering follows spec §4.3
// exactly, including the historical gaps (5, 6 never existed; odd v2
// natures were added later for the group actions).
type Nature int

const (
	NatureTrustchainCreation         Nature = 1
	NatureDeviceCreation              Nature = 2
	NatureKeyPublishToDevice          Nature = 3
	NatureDeviceRevocation            Nature = 4
	NatureDeviceCreation3             Nature = 7
	NatureKeyPublishToUser            Nature = 8
	NatureDeviceRevocation2           Nature = 9
	NatureUserGroupCreation           Nature = 10
	NatureKeyPublishToUserGroup       Nature = 11
	NatureUserGroupAddition           Nature = 12
	NatureKeyPublishToProvisionalUser Nature = 13
	NatureProvisionalIdentityClaim    Nature = 14
	NatureUserGroupCreation2          Nature = 15
	NatureUserGroupAddition2          Nature = 16
)

func (n Nature) String() string {
	switch n {
	case NatureTrustchainCreation:
		return "TrustchainCreation"
	case NatureDeviceCreation:
		return "DeviceCreation"
	case NatureKeyPublishToDevice:
		return "KeyPublishToDevice"
	case NatureDeviceRevocation:
		return "DeviceRevocation"
	case NatureDeviceCreation3:
		return "DeviceCreation3"
	case NatureKeyPublishToUser:
		return "KeyPublishToUser"
	case NatureDeviceRevocation2:
		return "DeviceRevocation2"
	case NatureUserGroupCreation:
		return "UserGroupCreation"
	case NatureKeyPublishToUserGroup:
		return "KeyPublishToUserGroup"
	case NatureUserGroupAddition:
		return "UserGroupAddition"
	case NatureKeyPublishToProvisionalUser:
		return "KeyPublishToProvisionalUser"
	case NatureProvisionalIdentityClaim:
		return "ProvisionalIdentityClaim"
	case NatureUserGroupCreation2:
		return "UserGroupCreation2"
	case NatureUserGroupAddition2:
		return "UserGroupAddition2"
	default:
		return "Unknown"
	}
}

// IsDeviceCreation reports whether n is either device-creation nature.
func (n Nature) IsDeviceCreation() bool {
	return n == NatureDeviceCreation || n == NatureDeviceCreation3
}

// IsDeviceRevocation reports whether n is either device-revocation nature.
func (n Nature) IsDeviceRevocation() bool {
	return n == NatureDeviceRevocation || n == NatureDeviceRevocation2
}

// IsUserGroupCreation reports whether n is either group-creation nature.
func (n Nature) IsUserGroupCreation() bool {
	return n == NatureUserGroupCreation || n == NatureUserGroupCreation2
}

// IsUserGroupAddition reports whether n is either group-addition nature.
func (n Nature) IsUserGroupAddition() bool {
	return n == NatureUserGroupAddition || n == NatureUserGroupAddition2
}

// IsKeyPublish reports whether n is any of the four key-publish natures.
func (n Nature) IsKeyPublish() bool {
	switch n {
	case NatureKeyPublishToDevice, NatureKeyPublishToUser, NatureKeyPublishToUserGroup, NatureKeyPublishToProvisionalUser:
		return true
	}
	return false
}
