//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

/*
Package proto implements the TChannel binary frame protocol.

TChannel Frame

A frame looks like
  +------------------------+------------+------------+------------+
  | 25-byte frame header   | arg1 bytes | arg2 bytes | arg3 bytes |
  +------------------------+------------+------------+------------+

Frame header
        | 0| 1| 2| 3| 4| 5| 6| 7| 0| 1| 2| 3| 4| 5| 6| 7| 0| 1| 2| 3| 4| 5| 6| 7| 0| 1| 2| 3| 4| 5| 6| 7|
   byte |                      0|                      1|                      2|                      3|
  ------+-----------------------+-----------------------+-----------------------+-----------------------+
      0 | type                  | id                                                                    |
  ------+-----------------------+-----------------------------------------------------------------------+
      4 | id (cont.)            | seq                                                                   |
  ------+-----------------------+-----------------------------------------------------------------------+
      8 | seq (cont.)           | arg1 length                                                           |
  ------+-----------------------+-----------------------------------------------------------------------+
     12 | arg1 length (cont.)   | arg2 length                                                           |
  ------+-----------------------+-----------------------------------------------------------------------+
     16 | arg2 length (cont.)   | arg3 length                                                           |
  ------+-----------------------+-----------------------------------------------------------------------+
     20 | arg3 length (cont.)   | checksum                                                              |
  ------+-----------------------+-----------------------------------------------------------------------+
     24 | checksum (cont.)      |
  ------+-----------------------+

  All integers are big-endian. There is no magic number, no version and no padding.

  type:
    0x01	request, complete message
    0x02	request, message fragment
    0x03	request, last fragment
    0x80	response, complete message
    0x81	response, message fragment
    0x82	response, last fragment
    0xC0	response, error

  id:
    correlation id, assigned by the sender of the request and echoed in the response.

  seq:
    fragment sequence number. Always 0 for complete messages.

  checksum:
    FarmHash32 of arg1, folded with FarmHash32WithSeed over arg2 and then arg3.
    An empty argument is skipped, so it never changes the checksum.

Arguments

  arg1	operation name of a request; echoed by a successful response; error message of
    	an error response
  arg2	head / first payload
  arg3	body / second payload

Only complete frames are supported. Fragment types are recognized by the parser but
never reassembled.
*/
package proto
